// Copyright 2026 The bytemap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides bytemap-stress, a randomized soak test for the
// bytemap hash table. It runs a configurable mix of put, delete, and lookup
// operations against a table and a builtin-map model in lockstep, verifies
// the two against each other, and optionally writes a JSON run report.
package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garrisonhh/bytemap"
)

var (
	errBadKeyMode  = errors.New(`key mode must be "string" or "fixed"`)
	errBadKeySize  = errors.New("fixed key size must be positive")
	errBadKeyspace = errors.New("keyspace must be positive")
	errBadWeights  = errors.New("operation weights must be non-negative and not all zero")
	errMismatch    = errors.New("table diverged from model")
)

// Config holds all stress run configuration. Values are loaded from a TOML
// file and individual flags override them.
type Config struct {
	Workload WorkloadConfig `toml:"workload"`
	Table    TableConfig    `toml:"table"`
}

// WorkloadConfig describes the operation mix.
type WorkloadConfig struct {
	// Ops is the total number of operations to run.
	Ops int `toml:"ops"`
	// Keyspace is the number of distinct keys the operations draw from.
	Keyspace int `toml:"keyspace"`
	// Seed seeds the operation stream. Zero picks a seed from the clock.
	Seed int64 `toml:"seed"`
	// CheckEvery is how many operations to run between full table/model
	// comparisons. Zero disables the periodic check; the final check always
	// runs.
	CheckEvery int `toml:"check_every"`

	PutWeight    int `toml:"put_weight"`
	DeleteWeight int `toml:"delete_weight"`
	LookupWeight int `toml:"lookup_weight"`
}

// TableConfig describes the table under test.
type TableConfig struct {
	InitialCapacity int    `toml:"initial_capacity"`
	KeyMode         string `toml:"key_mode"`
	FixedSize       int    `toml:"fixed_size"`
	CopyKeys        bool   `toml:"copy_keys"`
}

func (c TableConfig) mode() (bytemap.KeyMode, error) {
	switch c.KeyMode {
	case "string":
		return bytemap.StringKeys(), nil
	case "fixed":
		if c.FixedSize <= 0 {
			return bytemap.KeyMode{}, fmt.Errorf("%w: %d", errBadKeySize, c.FixedSize)
		}
		return bytemap.FixedKeys(c.FixedSize), nil
	}
	return bytemap.KeyMode{}, fmt.Errorf("%w: %q", errBadKeyMode, c.KeyMode)
}

// Report summarizes a completed run.
type Report struct {
	Seed           int64   `json:"seed"`
	Ops            int     `json:"ops"`
	Puts           int     `json:"puts"`
	Deletes        int     `json:"deletes"`
	Lookups        int     `json:"lookups"`
	Hits           int     `json:"hits"`
	Checks         int     `json:"checks"`
	Entries        int     `json:"entries"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func defaultConfig() Config {
	return Config{
		Workload: WorkloadConfig{
			Ops:          1000000,
			Keyspace:     1 << 16,
			CheckEvery:   100000,
			PutWeight:    2,
			DeleteWeight: 1,
			LookupWeight: 1,
		},
		Table: TableConfig{
			KeyMode:   "string",
			FixedSize: 8,
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := defaultConfig()

	configPath := flag.String("config", "", "Path to a TOML config file")
	reportPath := flag.String("report", "", "Write a JSON run report to this path")
	ops := flag.Int("ops", cfg.Workload.Ops, "Total number of operations")
	keyspace := flag.Int("keyspace", cfg.Workload.Keyspace, "Number of distinct keys")
	seed := flag.Int64("seed", cfg.Workload.Seed, "Random seed, 0 picks one from the clock")
	flag.Parse()

	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			return fmt.Errorf("loading %s: %w", *configPath, err)
		}
	}
	if flag.CommandLine.Changed("ops") {
		cfg.Workload.Ops = *ops
	}
	if flag.CommandLine.Changed("keyspace") {
		cfg.Workload.Keyspace = *keyspace
	}
	if flag.CommandLine.Changed("seed") {
		cfg.Workload.Seed = *seed
	}

	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	report, err := stress(logger, cfg)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}
	if *reportPath != "" {
		if err := writeReport(*reportPath, report); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", *reportPath))
	}
	return nil
}

func buildLogger() (*zap.Logger, error) {
	loggerConfig := zap.Config{
		Level:            zap.NewAtomicLevel(),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	loggerConfig.Level.SetLevel(zap.InfoLevel)
	return loggerConfig.Build()
}

func stress(logger *zap.Logger, cfg Config) (Report, error) {
	var rep Report

	w := cfg.Workload
	if w.PutWeight < 0 || w.DeleteWeight < 0 || w.LookupWeight < 0 ||
		w.PutWeight+w.DeleteWeight+w.LookupWeight <= 0 {
		return rep, fmt.Errorf("%w: put=%d delete=%d lookup=%d",
			errBadWeights, w.PutWeight, w.DeleteWeight, w.LookupWeight)
	}
	totalWeight := w.PutWeight + w.DeleteWeight + w.LookupWeight

	mode, err := cfg.Table.mode()
	if err != nil {
		return rep, err
	}
	keys, err := genKeys(cfg)
	if err != nil {
		return rep, err
	}

	rep.Seed = w.Seed
	if rep.Seed == 0 {
		rep.Seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rep.Seed))

	var options []bytemap.Option
	if cfg.Table.CopyKeys {
		options = append(options, bytemap.WithCopiedKeys())
	}
	table, err := bytemap.New(cfg.Table.InitialCapacity, mode, options...)
	if err != nil {
		return rep, err
	}
	model := make(map[string]string, len(keys))

	logger.Info("starting",
		zap.Int("ops", w.Ops),
		zap.Int("keyspace", len(keys)),
		zap.Int64("seed", rep.Seed),
		zap.Stringer("mode", mode),
		zap.Bool("copy_keys", cfg.Table.CopyKeys))

	start := time.Now()
	for i := 0; i < w.Ops; i++ {
		k := keys[rng.Intn(len(keys))]
		switch r := rng.Intn(totalWeight); {
		case r < w.PutWeight:
			v := strconv.Itoa(i)
			prev, err := table.Put(k, v)
			if err != nil {
				return rep, fmt.Errorf("put %q: %w", k, err)
			}
			if err := checkPrev(k, prev, model); err != nil {
				return rep, err
			}
			model[string(k)] = v
			rep.Puts++
		case r < w.PutWeight+w.DeleteWeight:
			if err := checkPrev(k, table.Delete(k), model); err != nil {
				return rep, err
			}
			delete(model, string(k))
			rep.Deletes++
		default:
			v, ok := table.Lookup(k)
			want, wantOK := model[string(k)]
			if ok != wantOK || (ok && v.(string) != want) {
				return rep, fmt.Errorf("%w: lookup %q: got %v,%t want %q,%t",
					errMismatch, k, v, ok, want, wantOK)
			}
			rep.Lookups++
			if ok {
				rep.Hits++
			}
		}
		if table.Len() != len(model) {
			return rep, fmt.Errorf("%w: after %d ops: table has %d entries, model has %d",
				errMismatch, i+1, table.Len(), len(model))
		}
		if w.CheckEvery > 0 && (i+1)%w.CheckEvery == 0 {
			if err := verify(table, model); err != nil {
				return rep, fmt.Errorf("after %d ops: %w", i+1, err)
			}
			rep.Checks++
			logger.Info("progress",
				zap.Int("ops", i+1),
				zap.Int("entries", table.Len()),
				zap.Int("checks", rep.Checks))
		}
	}

	if err := verify(table, model); err != nil {
		return rep, err
	}
	rep.Checks++
	rep.Ops = w.Ops
	rep.Entries = table.Len()
	rep.ElapsedSeconds = time.Since(start).Seconds()

	logger.Info("done",
		zap.Int("ops", rep.Ops),
		zap.Int("entries", rep.Entries),
		zap.Float64("elapsed_seconds", rep.ElapsedSeconds))
	return rep, nil
}

// genKeys builds the keyspace up front with every key already in its
// significant form: fixed keys are exactly fixed_size bytes and string keys
// contain no zero byte. The table then aliases these slices for the whole
// run unless copy_keys is set.
func genKeys(cfg Config) ([][]byte, error) {
	n := cfg.Workload.Keyspace
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", errBadKeyspace, n)
	}

	keys := make([][]byte, n)
	if cfg.Table.KeyMode == "fixed" {
		size := cfg.Table.FixedSize
		if size < 8 && uint64(n) > uint64(1)<<(8*size) {
			return nil, fmt.Errorf("%w: %d keys do not fit in %d-byte keys",
				errBadKeyspace, n, size)
		}
		for i := range keys {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(i))
			k := make([]byte, size)
			copy(k, buf[:])
			keys[i] = k
		}
		return keys, nil
	}
	for i := range keys {
		keys[i] = []byte(strconv.Itoa(i))
	}
	return keys, nil
}

// checkPrev checks the previous value returned by a put or delete against
// the model's entry for the key.
func checkPrev(key []byte, prev any, model map[string]string) error {
	want, ok := model[string(key)]
	switch {
	case !ok && prev != nil:
		return fmt.Errorf("%w: key %q: unexpected previous value %v", errMismatch, key, prev)
	case ok && (prev == nil || prev.(string) != want):
		return fmt.Errorf("%w: key %q: previous value %v, want %q", errMismatch, key, prev, want)
	}
	return nil
}

func verify(table *bytemap.Map, model map[string]string) error {
	if diff := cmp.Diff(model, snapshot(table)); diff != "" {
		return fmt.Errorf("%w (-model +table):\n%s", errMismatch, diff)
	}
	return nil
}

func snapshot(table *bytemap.Map) map[string]string {
	s := make(map[string]string, table.Len())
	table.All(func(k []byte, v any) bool {
		s[string(k)] = v.(string)
		return true
	})
	return s
}

func writeReport(path string, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
