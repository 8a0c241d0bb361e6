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

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStressSmoke(t *testing.T) {
	smoke := func(t *testing.T, cfg Config) Report {
		t.Helper()
		cfg.Workload.Ops = 5000
		cfg.Workload.Keyspace = 512
		cfg.Workload.Seed = 1
		cfg.Workload.CheckEvery = 1000

		rep, err := stress(zap.NewNop(), cfg)
		require.NoError(t, err)
		require.Equal(t, 5000, rep.Ops)
		require.Equal(t, 5000, rep.Puts+rep.Deletes+rep.Lookups)
		// Five periodic checks plus the final one.
		require.Equal(t, 6, rep.Checks)
		require.EqualValues(t, 1, rep.Seed)
		require.Positive(t, rep.Entries)
		return rep
	}

	t.Run("mode=string", func(t *testing.T) {
		smoke(t, defaultConfig())
	})
	t.Run("mode=fixed", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Table.KeyMode = "fixed"
		cfg.Table.FixedSize = 4
		smoke(t, cfg)
	})
	t.Run("copied-keys", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Table.CopyKeys = true
		smoke(t, cfg)
	})

	t.Run("deterministic", func(t *testing.T) {
		// The same seed replays the same operation stream.
		a := smoke(t, defaultConfig())
		b := smoke(t, defaultConfig())
		a.ElapsedSeconds, b.ElapsedSeconds = 0, 0
		require.Equal(t, a, b)
	})

	t.Run("bad-weights", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Workload.PutWeight = 0
		cfg.Workload.DeleteWeight = 0
		cfg.Workload.LookupWeight = 0
		_, err := stress(zap.NewNop(), cfg)
		require.ErrorIs(t, err, errBadWeights)
	})
}

func TestTableConfigMode(t *testing.T) {
	_, err := TableConfig{KeyMode: "varint"}.mode()
	require.ErrorIs(t, err, errBadKeyMode)

	_, err = TableConfig{KeyMode: "fixed"}.mode()
	require.ErrorIs(t, err, errBadKeySize)

	mode, err := TableConfig{KeyMode: "fixed", FixedSize: 8}.mode()
	require.NoError(t, err)
	require.Equal(t, "fixed(8)", mode.String())

	mode, err = TableConfig{KeyMode: "string"}.mode()
	require.NoError(t, err)
	require.Equal(t, "string", mode.String())
}

func TestGenKeys(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Workload.Keyspace = 100
		keys, err := genKeys(cfg)
		require.NoError(t, err)
		require.Len(t, keys, 100)
		require.Equal(t, []byte("0"), keys[0])
		require.Equal(t, []byte("99"), keys[99])
	})

	t.Run("fixed", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Workload.Keyspace = 300
		cfg.Table.KeyMode = "fixed"
		cfg.Table.FixedSize = 2
		keys, err := genKeys(cfg)
		require.NoError(t, err)
		require.Len(t, keys, 300)
		for _, k := range keys {
			require.Len(t, k, 2)
		}
		require.Equal(t, []byte{0x2b, 0x01}, keys[300-1])
	})

	t.Run("keyspace-overflows-key-size", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Workload.Keyspace = 300
		cfg.Table.KeyMode = "fixed"
		cfg.Table.FixedSize = 1
		_, err := genKeys(cfg)
		require.ErrorIs(t, err, errBadKeyspace)
	})

	t.Run("non-positive-keyspace", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Workload.Keyspace = 0
		_, err := genKeys(cfg)
		require.ErrorIs(t, err, errBadKeyspace)
	})
}

func TestWriteReport(t *testing.T) {
	rep := Report{Seed: 42, Ops: 10, Puts: 5, Deletes: 2, Lookups: 3, Checks: 1, Entries: 3}
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeReport(path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, rep, got)
}
