package relevance

import "strings"

// hostPatterns stores domain and suffix patterns derived from configuration.
// A bare domain matches itself and any subdomain; "*.x" and ".x" match
// subdomains of x only.
type hostPatterns struct {
	domains  map[string]struct{}
	suffixes []string
}

func newHostPatterns(patterns []string) *hostPatterns {
	matcher := &hostPatterns{
		domains: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		value = strings.TrimPrefix(value, "www.")
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			matcher.addSuffix(strings.TrimPrefix(value, "*"))
		case strings.HasPrefix(value, "."):
			matcher.addSuffix(value)
		default:
			matcher.domains[value] = struct{}{}
		}
	}
	return matcher
}

func (m *hostPatterns) addSuffix(suffix string) {
	if suffix == "." {
		return
	}
	for _, existing := range m.suffixes {
		if existing == suffix {
			return
		}
	}
	m.suffixes = append(m.suffixes, suffix)
}

func (m *hostPatterns) empty() bool {
	return m == nil || (len(m.domains) == 0 && len(m.suffixes) == 0)
}

// Matches reports whether host equals or sits under a configured pattern.
func (m *hostPatterns) Matches(host string) bool {
	if m == nil {
		return false
	}
	host = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(host)), ".")
	if host == "" {
		return false
	}
	for candidate := host; candidate != ""; {
		if _, ok := m.domains[candidate]; ok {
			return true
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// hostSignals implements the loose heuristic: dotted entries are suffixes
// (".gov.au"), anything else is a substring of the host ("legalaid").
type hostSignals struct {
	suffixes   *hostPatterns
	substrings []string
}

func newHostSignals(signals []string) hostSignals {
	var suffixes, substrings []string
	for _, raw := range signals {
		value := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, ".") || strings.HasPrefix(value, "*."):
			suffixes = append(suffixes, value)
		default:
			substrings = append(substrings, value)
		}
	}
	return hostSignals{suffixes: newHostPatterns(suffixes), substrings: substrings}
}

func (s hostSignals) Matches(host string) bool {
	host = strings.ToLower(host)
	if s.suffixes.Matches(host) {
		return true
	}
	for _, sub := range s.substrings {
		if strings.Contains(host, sub) {
			return true
		}
	}
	return false
}
