// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package ytdlp

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validator decides whether a source URL may be handed to yt-dlp
type Validator interface {
	IsValid(rawURL string) bool
}

// urlFilter matches each rule against the whole URL and against its host,
// so both `^https://` and `^(www\.)?youtube\.com$` work as rules.
type urlFilter struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator creates a Validator from allow and block rules. Blank rules
// are ignored; an empty allow list admits every URL that is not blocked.
func NewValidator(allow, block []string) (Validator, error) {
	var (
		f   urlFilter
		err error
	)
	if f.allow, err = compileRules("allow", allow); err != nil {
		return nil, err
	}
	if f.block, err = compileRules("block", block); err != nil {
		return nil, err
	}
	return &f, nil
}

func compileRules(kind string, rules []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		re, err := regexp.Compile(rule)
		if err != nil {
			return nil, fmt.Errorf("invalid %s rule %q: %w", kind, rule, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (f *urlFilter) IsValid(rawURL string) bool {
	subjects := []string{rawURL}
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		subjects = append(subjects, strings.ToLower(u.Hostname()))
	}

	if anyMatch(f.block, subjects) {
		return false
	}
	return len(f.allow) == 0 || anyMatch(f.allow, subjects)
}

func anyMatch(rules []*regexp.Regexp, subjects []string) bool {
	for _, re := range rules {
		for _, s := range subjects {
			if re.MatchString(s) {
				return true
			}
		}
	}
	return false
}
