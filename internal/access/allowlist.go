package access

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// AllowList is an immutable set of canonical card identifiers.
// The zero value denies everything.
type AllowList struct {
	ids map[string]struct{}
}

// NewAllowList builds an allow-list, canonicalizing each entry. Blank
// entries are skipped.
func NewAllowList(uids ...string) AllowList {
	ids := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		uid = canonical(uid)
		if uid == "" {
			continue
		}
		ids[uid] = struct{}{}
	}
	return AllowList{ids: ids}
}

// Contains reports whether uid is authorized.
func (a AllowList) Contains(uid string) bool {
	_, ok := a.ids[canonical(uid)]
	return ok
}

// Len returns the number of authorized identifiers.
func (a AllowList) Len() int {
	return len(a.ids)
}

type allowListFile struct {
	AuthorizedUIDs []string `json:"authorized_uids"`
}

// ParseAllowList parses {"authorized_uids": [...]}. Comments and trailing
// commas are accepted.
func ParseAllowList(data []byte) (AllowList, error) {
	var f allowListFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return AllowList{}, fmt.Errorf("parsing allow-list: %w", err)
	}
	return NewAllowList(f.AuthorizedUIDs...), nil
}

// LoadAllowList reads the allow-list file. On any error it returns an empty
// allow-list together with the error, so a broken file denies every card.
func LoadAllowList(path string) (AllowList, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return AllowList{}, fmt.Errorf("reading %s: %w", path, err)
	}

	list, err := ParseAllowList(data)
	if err != nil {
		return AllowList{}, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

func canonical(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}
