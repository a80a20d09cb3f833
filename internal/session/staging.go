package session

import (
	"path/filepath"
	"strings"

	"github.com/sachiverma0/policychat/internal/relay"
)

// staging accumulates user-selected files until they are confirmed uploaded.
// The staged and uploaded lists are mutually exclusive views: commit swaps
// the staged batch wholesale into the uploaded list.
type staging struct {
	accept   func(name string) bool
	staged   []relay.File
	uploaded []relay.File
}

func (st *staging) stage(f relay.File) bool {
	if !st.accept(f.Name) {
		return false
	}
	st.staged = append(st.staged, f)
	return true
}

func (st *staging) commit() {
	st.uploaded = append(st.uploaded, st.staged...)
	st.staged = nil
}

func (st *staging) stagedFiles() []relay.File {
	out := make([]relay.File, len(st.staged))
	copy(out, st.staged)
	return out
}

func (st *staging) stagedNames() []string {
	return names(st.staged)
}

func (st *staging) uploadedNames() []string {
	return names(st.uploaded)
}

func names(files []relay.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
