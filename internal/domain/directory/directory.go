// Package directory keeps the autocomplete list of student names. The list
// lives in the local kv scope and is never reconciled with the lesson store.
package directory

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/okian/rinkside/internal/adapters/kv"
)

// Key is the local-scope key holding the JSON list.
const Key = "students"

// Directory is a sorted, duplicate-free set of student names.
type Directory struct {
	store kv.Store
	names []string
}

// Load reads the list from store. A missing or unreadable value is an empty list.
func Load(store kv.Store) *Directory {
	d := &Directory{store: store}
	raw, ok := store.Get(Key)
	if !ok {
		return d
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return d
	}
	d.names = canonical(names)
	return d
}

// Names returns a copy of the list.
func (d *Directory) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Contains reports whether name is already listed.
func (d *Directory) Contains(name string) bool {
	name = strings.TrimSpace(name)
	i := sort.SearchStrings(d.names, name)
	return i < len(d.names) && d.names[i] == name
}

// Remember adds name if it is new and persists the list. It reports whether
// the list changed.
func (d *Directory) Remember(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || d.Contains(name) {
		return false
	}
	d.names = canonical(append(d.names, name))
	d.save()
	return true
}

// Clear empties the list.
func (d *Directory) Clear() {
	d.names = nil
	d.store.Delete(Key)
}

func (d *Directory) save() {
	b, err := json.Marshal(d.names)
	if err != nil {
		return
	}
	d.store.Set(Key, string(b))
}

func canonical(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
