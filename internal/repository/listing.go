package repository

import (
	"sort"
	"strings"
)

// SelectKeys applies prefix, marker, delimiter, and max-keys semantics to a
// raw key list, the way S3 listings group them. Returned keys are sorted;
// common prefixes are the delimiter groups under the prefix, without
// duplicates. Adapters over flat backends (filesystem, Cloud Files) share
// this instead of re-implementing S3's grouping rules.
func SelectKeys(keys []string, opts ListOptions) (selected, commonPrefixes []string) {
	rest := make([]string, 0, len(keys))
	for _, k := range keys {
		if opts.Prefix == "" || strings.HasPrefix(k, opts.Prefix) {
			rest = append(rest, strings.TrimPrefix(k, opts.Prefix))
		}
	}

	var entries []string
	prefixSet := make(map[string]struct{})
	if opts.Delimiter != "" {
		for _, k := range rest {
			if idx := strings.Index(k, opts.Delimiter); idx >= 0 {
				prefixSet[opts.Prefix+k[:idx+len(opts.Delimiter)]] = struct{}{}
			} else {
				entries = append(entries, k)
			}
		}
	} else {
		entries = rest
	}

	for i := range entries {
		entries[i] = opts.Prefix + entries[i]
	}
	sort.Strings(entries)

	if opts.Marker != "" {
		cut := sort.SearchStrings(entries, opts.Marker)
		// Listing resumes after the marker itself.
		for cut < len(entries) && entries[cut] == opts.Marker {
			cut++
		}
		entries = entries[cut:]
	}

	if opts.MaxKeys > 0 && len(entries) > opts.MaxKeys {
		entries = entries[:opts.MaxKeys]
	}

	for p := range prefixSet {
		commonPrefixes = append(commonPrefixes, p)
	}
	sort.Strings(commonPrefixes)
	return entries, commonPrefixes
}
