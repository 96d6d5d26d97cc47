package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/onnwee/listrank/internal/listing"
)

// Simulated traffic shape.
const (
	MaxSimulatedReviews   = 500
	MinListingsPerRequest = 1
	MaxListingsPerRequest = 100
	CallerIDLength        = 10
)

const callerIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ErrEmptyFixture is returned when a fixture holds no listings.
var ErrEmptyFixture = errors.New("fixture contains no listings")

// LoadFixture reads listings from a JSON or YAML file holding a list of
// listing objects. The format follows the file extension.
func LoadFixture(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var listings []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &listings)
	default:
		err = json.Unmarshal(data, &listings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if len(listings) == 0 {
		return nil, ErrEmptyFixture
	}
	return listings, nil
}

// Summary counts simulator outcomes.
type Summary struct {
	Successful int
	Failed     int
}

// Simulator sends random ranking requests built from fixture listings.
type Simulator struct {
	client   *Client
	listings []map[string]any
	rng      *rand.Rand
	out      io.Writer
}

// NewSimulator creates a simulator. The same seed replays the same requests.
func NewSimulator(client *Client, listings []map[string]any, seed uint64, out io.Writer) *Simulator {
	return &Simulator{
		client:   client,
		listings: listings,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		out:      out,
	}
}

// Run sends n requests one after another and reports each outcome.
func (s *Simulator) Run(ctx context.Context, n int) Summary {
	var sum Summary
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		req := s.nextRequest()
		fmt.Fprintf(s.out, "[%d/%d] Sending request for caller %s with %d listings\n", i+1, n, req.CallerID, len(req.Listings))

		resp, err := s.client.Rank(ctx, req)
		if err != nil {
			sum.Failed++
			fmt.Fprintf(s.out, "✗ Request for caller %s failed: %v\n", req.CallerID, err)
			continue
		}
		sum.Successful++
		corr := "N/A"
		if resp.SpearmanCorrelation != nil {
			corr = fmt.Sprintf("%.3f", *resp.SpearmanCorrelation)
		}
		fmt.Fprintf(s.out, "✓ Request for caller %s: %d listings ranked by %s, correlation: %s\n",
			req.CallerID, len(resp.Listings), resp.ModelName, corr)
	}
	return sum
}

func (s *Simulator) nextRequest() RankRequest {
	size := MinListingsPerRequest + s.rng.IntN(MaxListingsPerRequest-MinListingsPerRequest+1)
	size = min(size, len(s.listings))

	picked := make([]map[string]any, 0, size)
	for _, idx := range s.rng.Perm(len(s.listings))[:size] {
		l := maps.Clone(s.listings[idx])
		l[listing.FieldReviewCount] = s.rng.IntN(MaxSimulatedReviews + 1)
		picked = append(picked, l)
	}
	return RankRequest{CallerID: s.callerID(), Listings: picked}
}

func (s *Simulator) callerID() string {
	b := make([]byte, CallerIDLength)
	for i := range b {
		b[i] = callerIDAlphabet[s.rng.IntN(len(callerIDAlphabet))]
	}
	return string(b)
}

// NewSimulateCmd creates the 'simulate' command.
func NewSimulateCmd(opts *globalOptions) *cobra.Command {
	var (
		fixture  string
		requests int
		seed     uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Send random ranking requests",
		Long: fmt.Sprintf(`Send random ranking requests built from a fixture of listings. Each
request carries %d to %d listings drawn without replacement, with their
review counts replaced by a random value between 0 and %d, under a random
%d-character caller id.`, MinListingsPerRequest, MaxListingsPerRequest, MaxSimulatedReviews, CallerIDLength),
		Example: `  rankctl simulate --fixture testdata/listings.json --requests 50`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listings, err := LoadFixture(fixture)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d listings from %s\n", len(listings), fixture)
			fmt.Fprintf(out, "Sending %d requests to %s\n", requests, opts.server)
			fmt.Fprintln(out, strings.Repeat("=", 60))

			sum := NewSimulator(opts.client(), listings, seed, out).Run(cmd.Context(), requests)

			fmt.Fprintln(out, strings.Repeat("=", 60))
			fmt.Fprintf(out, "Summary: %d successful, %d failed\n", sum.Successful, sum.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fixture, "fixture", "f", "", "JSON or YAML file with a list of listings")
	cmd.Flags().IntVarP(&requests, "requests", "n", 10, "Number of requests to send")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 picks one from the clock)")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}
