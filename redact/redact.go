package redact

import (
	"math"
	"net/url"
	"slices"
	"strings"
)

func String(s string) string {
	l := len(s)

	var flag int
	if l%4 != 0 {
		flag = 1
	}

	return s[0:int(math.Floor(float64(l)*.25))] +
		strings.Repeat("*", int(math.RoundToEven(float64(l)*.5))+(1&flag)) +
		s[int(math.Floor(float64(l)*.75))+(1&flag):]
}

// URL masks the password and every query value of raw. Signed segment
// URLs carry their tokens in the query.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if nil != err {
		return String(raw)
	}

	if nil != u.User {
		if pwd, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), String(pwd))
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			for _, v := range q[k] {
				parts = append(parts, url.QueryEscape(k)+"="+String(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	return u.String()
}
