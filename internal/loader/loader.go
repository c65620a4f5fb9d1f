// Package loader reads resolver and candidate-name lists from line-oriented
// files. Blank lines and '#' comments are skipped, invalid entries are
// counted and logged rather than aborting the load, and an input that yields
// zero valid entries is an error.
package loader

import (
	"bufio"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"

	"github.com/lc/stampede/internal/filesys"
	"github.com/lc/stampede/internal/log"
)

var (
	// ErrNoResolvers is returned when a resolver file contains no valid entries.
	ErrNoResolvers = fmt.Errorf("no valid resolvers found")
	// ErrNoCandidates is returned when a name file contains no valid entries.
	ErrNoCandidates = fmt.Errorf("no valid names found")
)

const _defaultDNSPort = "53"

// Resolvers loads DNS server endpoints, one per line, as host:port strings.
// Entries without a port get the default DNS port appended.
func Resolvers(fs filesys.ReadWriteFS, path string) ([]string, error) {
	var (
		resolvers []string
		invalid   int
	)

	err := eachLine(fs, path, func(n int, line string) {
		addr, ok := parseResolver(line)
		if !ok {
			invalid++
			log.Warnf("loader: invalid resolver at %s:%d - %q", path, n, line)
			return
		}
		resolvers = append(resolvers, addr)
	})
	if err != nil {
		return nil, err
	}

	if len(resolvers) == 0 {
		return nil, fmt.Errorf("%w in %s (%d invalid entries)", ErrNoResolvers, path, invalid)
	}

	log.Infof("loader: loaded %d resolvers from %s (%d invalid entries skipped)",
		len(resolvers), path, invalid)
	return resolvers, nil
}

// Candidates loads fully-formed domain names, one per line, lower-cased.
func Candidates(fs filesys.ReadWriteFS, path string) ([]string, error) {
	var (
		names   []string
		invalid int
	)

	err := eachLine(fs, path, func(n int, line string) {
		if !ValidDomain(line) {
			invalid++
			log.Warnf("loader: invalid domain at %s:%d - %q", path, n, line)
			return
		}
		names = append(names, strings.ToLower(line))
	})
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s (%d invalid entries)", ErrNoCandidates, path, invalid)
	}

	log.Infof("loader: loaded %d names from %s (%d invalid entries skipped)",
		len(names), path, invalid)
	return names, nil
}

// Wordlist loads subdomain labels from path and composes each with domain as
// "label.domain". Composed names that fail domain validation are skipped.
func Wordlist(fs filesys.ReadWriteFS, path, domain string) ([]string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if !ValidDomain(domain) {
		return nil, fmt.Errorf("invalid base domain %q", domain)
	}

	var (
		names   []string
		invalid int
	)

	err := eachLine(fs, path, func(n int, line string) {
		name := strings.ToLower(line) + "." + domain
		if !ValidDomain(name) {
			invalid++
			log.Warnf("loader: invalid label at %s:%d - %q", path, n, line)
			return
		}
		names = append(names, name)
	})
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s (%d invalid entries)", ErrNoCandidates, path, invalid)
	}

	log.Infof("loader: composed %d names from %s under %s (%d invalid entries skipped)",
		len(names), path, domain, invalid)
	return names, nil
}

// Shuffle randomizes names in place.
func Shuffle(names []string) {
	rand.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})
}

// eachLine calls fn for every non-blank, non-comment line of path,
// with its 1-based line number.
func eachLine(fs filesys.ReadWriteFS, path string, fn func(n int, line string)) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(n, line)
	}
	return sc.Err()
}

// parseResolver validates one resolver line and normalizes it to host:port.
// The host must be a literal IP and the port numeric in 1-65535; entries
// without a port default to 53.
func parseResolver(line string) (string, bool) {
	host, port, err := net.SplitHostPort(line)
	if err != nil {
		// No port, or a bare IPv6 address. Brackets are stripped so
		// "[::1]" and "::1" both normalize the same way.
		host, port = strings.Trim(line, "[]"), _defaultDNSPort
	}
	if net.ParseIP(host) == nil {
		return "", false
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return "", false
	}
	return net.JoinHostPort(host, port), true
}

// ValidDomain reports whether s is a plausible DNS name: at most 253 bytes,
// labels of 1-63 bytes, alphanumerics plus '-' and '_', no leading or
// trailing dot. Underscores are tolerated because wordlists for enumeration
// routinely contain service labels like _dmarc.
func ValidDomain(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}

	labelLen := 0
	for _, c := range s {
		if c == '.' {
			if labelLen == 0 {
				return false
			}
			labelLen = 0
			continue
		}
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			labelLen++
			if labelLen > 63 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
