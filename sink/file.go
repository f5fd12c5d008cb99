package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// File names written for every run.
const (
	RunFile    = "run.json"
	RoundsFile = "rounds.ndjson"
)

// runHeader is the run.json document: everything except the rounds.
type runHeader struct {
	core.RunMetadata
	Summary core.Summary `json:"summary"`
}

// File writes each run into its own directory under Dir: run.json holds
// metadata and summary, rounds.ndjson one RoundRecord per line.
type File struct {
	Dir string
}

var _ core.RunSink = (*File)(nil)

// NewFile returns a sink rooted at dir.
func NewFile(dir string) *File { return &File{Dir: dir} }

// Save implements core.RunSink.
func (f *File) Save(ctx context.Context, run *core.Run) error {
	if run.ID == "" {
		return errors.New("run has no id")
	}
	dir := filepath.Join(f.Dir, run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run dir: %w", err)
	}

	header, err := json.MarshalIndent(runHeader{RunMetadata: run.RunMetadata, Summary: run.Summary}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, RunFile), append(header, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", RunFile, err)
	}

	out, err := os.Create(filepath.Join(dir, RoundsFile))
	if err != nil {
		return fmt.Errorf("creating %s: %w", RoundsFile, err)
	}
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, rec := range run.Rounds {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		if err := enc.Encode(rec); err != nil {
			out.Close()
			return fmt.Errorf("writing round %d: %w", rec.Round, err)
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Load reads a run previously written by Save.
func (f *File) Load(id string) (*core.Run, error) {
	dir := filepath.Join(f.Dir, id)
	data, err := os.ReadFile(filepath.Join(dir, RunFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var header runHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", RunFile, err)
	}
	run := &core.Run{RunMetadata: header.RunMetadata, Summary: header.Summary}

	in, err := os.Open(filepath.Join(dir, RoundsFile))
	if err != nil {
		return nil, err
	}
	defer in.Close()
	dec := json.NewDecoder(in)
	for dec.More() {
		var rec core.RoundRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", RoundsFile, err)
		}
		run.Rounds = append(run.Rounds, rec)
	}
	return run, nil
}
