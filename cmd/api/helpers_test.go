package main

import "os"

func removeAndTouch(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("not a directory"), 0o644)
}
