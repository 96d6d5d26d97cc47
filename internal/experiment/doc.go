// Package experiment evaluates ranking experiments.
//
// Offline, Analyze turns a prediction log into per-model distribution
// statistics, error metrics against observed ratings, and pairwise
// significance tests between models. At request time, Spearman measures how
// far blending moved the caller's ratings.
//
// Statistics follow the usual numerical conventions: standard deviation is
// the population form, percentiles interpolate linearly between closest
// ranks, the t-test assumes equal variances, and the Mann–Whitney U test is
// two-sided with average ranks for ties.
package experiment
