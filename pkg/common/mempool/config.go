// Copyright 2022 - 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mempool

import (
	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/mempool/pkg/common/moerr"
)

const (
	// DefaultBlockSize is the region capacity used when the
	// configuration leaves it zero.
	DefaultBlockSize = 4096
)

// Config sizes the regions of one pool.
type Config struct {
	// BlockSize is the byte capacity of one region. default: 4096
	BlockSize uint64 `toml:"block-size"`

	// ReservedBlocks is the number of regions carved eagerly at pool
	// construction, taking the first carve off the allocation path.
	// default: 0
	ReservedBlocks int `toml:"reserved-blocks"`
}

// Adjust fills zero fields with defaults.
func (c *Config) Adjust() {
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
}

func (c *Config) Validate() error {
	if c.ReservedBlocks < 0 {
		return moerr.NewBadConfigNoCtx("reserved-blocks %d is negative", c.ReservedBlocks)
	}
	return nil
}

// LoadConfig reads a toml file into a Config and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("parse %s: %v", path, err)
	}
	cfg.Adjust()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
