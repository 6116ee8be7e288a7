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
	"strings"

	"gopkg.in/ini.v1"

	"github.com/nutcore/upsd/users"
)

// LoadUsersConf parses upsd.users into a fresh users.DB: one section per
// user, "actions"/"instcmds" as comma-separated lists, "upsmon primary"
// granting primary authority (§3 data model, Role).
func LoadUsersConf(path string) (*users.DB, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	db := users.NewDB()
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		db.Put(userFromSection(sec))
	}
	return db, nil
}

func userFromSection(sec *ini.Section) *users.User {
	actions := splitList(sec.Key("actions").String())
	role := users.RoleNone
	switch strings.ToLower(sec.Key("upsmon").String()) {
	case "primary", "master":
		role = users.RolePrimary
	case "secondary", "slave":
		role = users.RoleSecondary
	}

	u := &users.User{
		Name:        sec.Name(),
		Password:    sec.Key("password").String(),
		Role:        role,
		InstCmds:    splitList(sec.Key("instcmds").String()),
		SetVariable: containsFold(actions, "SET"),
		ReadAny:     true,
	}
	return u
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
