/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"fmt"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// UPSEntry is one [name] section of ups.conf.
type UPSEntry struct {
	Name   string
	Driver string
	Port   string
	Desc   string
}

// Socket returns the Unix domain socket the named driver listens on,
// statePath/name, matching the original's driver<->upsd handoff.
func (u UPSEntry) Socket(statePath string) string {
	return filepath.Join(statePath, u.Name)
}

// LoadUPSConf parses ups.conf into one UPSEntry per section.
func LoadUPSConf(path string) ([]UPSEntry, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var out []UPSEntry
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		out = append(out, UPSEntry{
			Name:   sec.Name(),
			Driver: sec.Key("driver").String(),
			Port:   sec.Key("port").String(),
			Desc:   sec.Key("desc").String(),
		})
	}
	return out, nil
}
