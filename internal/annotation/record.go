package annotation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// StatusOK marks a word whose segmentation was verified.
const StatusOK = "ok"

// DefaultMinFields is the shortest usable record: id, status, graylevel, the
// four box fields, grammatical tag and at least one transcription token.
const DefaultMinFields = 9

// Record is one word line of an IAM-style words.txt:
//
//	a01-000u-00-00 ok 154 408 768 27 51 AT A
//
// Box coordinates are in pixels relative to the full form image.
type Record struct {
	WordID    string `json:"word_id"`
	Status    string `json:"status"`
	GrayLevel int    `json:"gray_level"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	W         int    `json:"w"`
	H         int    `json:"h"`
	Tag       string `json:"tag"`
	Text      string `json:"text"`
}

// FormID returns the owning form of the record.
func (r Record) FormID() string {
	return FormID(r.WordID)
}

// Bottom returns the first row below the word box.
func (r Record) Bottom() int {
	return r.Y + r.H
}

// String formats the record as a words.txt line.
func (r Record) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d %s %s",
		r.WordID, r.Status, r.GrayLevel, r.X, r.Y, r.W, r.H, r.Tag, r.Text)
}

// ParseLine parses one words.txt line. It reports false for comments, blank
// lines, lines with fewer than minFields fields, and lines whose box fields
// are not integers.
func ParseLine(line string, minFields int) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Record{}, false
	}

	parts := strings.Fields(trimmed)
	if len(parts) < minFields || len(parts) < 8 {
		return Record{}, false
	}

	box := make([]int, 4)
	for i := range box {
		n, err := strconv.Atoi(parts[3+i])
		if err != nil {
			return Record{}, false
		}
		box[i] = n
	}

	// The gray level plays no part in splitting; a malformed one reads as 0.
	gray, _ := strconv.Atoi(parts[2])

	return Record{
		WordID:    parts[0],
		Status:    parts[1],
		GrayLevel: gray,
		X:         box[0],
		Y:         box[1],
		W:         box[2],
		H:         box[3],
		Tag:       parts[7],
		Text:      strings.Join(parts[8:], " "),
	}, true
}

// FormID derives the form identifier from a word identifier: the first two
// hyphen-separated tokens, so "a01-000u-00-00" belongs to "a01-000u".
func FormID(wordID string) string {
	parts := strings.SplitN(wordID, "-", 3)
	if len(parts) < 2 {
		return wordID
	}
	return parts[0] + "-" + parts[1]
}

// GroupByForm reads a words.txt stream and groups its raw lines by form id.
//
// Comment and blank lines are dropped; everything else is kept verbatim so the
// detector applies its own status and field filters.
func GroupByForm(r io.Reader) (map[string][]string, error) {
	groups := make(map[string][]string)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		wordID := strings.Fields(line)[0]
		id := FormID(wordID)
		groups[id] = append(groups[id], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	return groups, nil
}

// LoadFile groups the annotation file at path by form id.
func LoadFile(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer f.Close()

	return GroupByForm(f)
}
