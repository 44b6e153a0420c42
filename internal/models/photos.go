package models

import (
	"encoding/json"
	"fmt"
)

// Slot names one photo collection of an activity detail
type Slot string

const (
	SlotBefore   Slot = "before"
	SlotProgress Slot = "progress" // 50%
	SlotAfter    Slot = "after"
	SlotSketch   Slot = "sketch"
)

// Slots lists every photo slot in document order
var Slots = []Slot{SlotBefore, SlotProgress, SlotAfter, SlotSketch}

// ParseSlot validates a slot name
func ParseSlot(s string) (Slot, error) {
	for _, slot := range Slots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("unknown photo slot %q", s)
}

// Attachment is a locally attached file that has not reached object storage.
// Handle refers to the bytes held by the draft store.
type Attachment struct {
	Handle      string `json:"handle"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Photo is either Stored(url) or Pending(attachment)
type Photo struct {
	url     string
	pending *Attachment
}

func StoredPhoto(url string) Photo { return Photo{url: url} }

func PendingPhoto(a Attachment) Photo { return Photo{pending: &a} }

func (p Photo) IsPending() bool { return p.pending != nil }

// URL returns the durable reference of a stored photo
func (p Photo) URL() (string, bool) {
	if p.pending != nil {
		return "", false
	}
	return p.url, true
}

// Attachment returns the pending attachment
func (p Photo) Attachment() (Attachment, bool) {
	if p.pending == nil {
		return Attachment{}, false
	}
	return *p.pending, true
}

type photoJSON struct {
	URL     string      `json:"url,omitempty"`
	Pending *Attachment `json:"pending,omitempty"`
}

func (p Photo) MarshalJSON() ([]byte, error) {
	return json.Marshal(photoJSON{URL: p.url, Pending: p.pending})
}

func (p *Photo) UnmarshalJSON(data []byte) error {
	var raw photoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode photo: %w", err)
	}
	if raw.Pending != nil {
		*p = PendingPhoto(*raw.Pending)
		return nil
	}
	*p = StoredPhoto(raw.URL)
	return nil
}

// PhotoSet holds the four ordered photo collections of an activity detail
type PhotoSet struct {
	Before   []Photo `json:"before"`
	Progress []Photo `json:"progress"`
	After    []Photo `json:"after"`
	Sketch   []Photo `json:"sketch"`
}

// Get returns the photos of one slot
func (s PhotoSet) Get(slot Slot) []Photo {
	switch slot {
	case SlotBefore:
		return s.Before
	case SlotProgress:
		return s.Progress
	case SlotAfter:
		return s.After
	case SlotSketch:
		return s.Sketch
	}
	return nil
}

// With returns a copy of the set with one slot replaced
func (s PhotoSet) With(slot Slot, photos []Photo) PhotoSet {
	switch slot {
	case SlotBefore:
		s.Before = photos
	case SlotProgress:
		s.Progress = photos
	case SlotAfter:
		s.After = photos
	case SlotSketch:
		s.Sketch = photos
	}
	return s
}

// StoredPhotos wraps persisted URLs
func StoredPhotos(urls []string) []Photo {
	out := make([]Photo, 0, len(urls))
	for _, u := range urls {
		out = append(out, StoredPhoto(u))
	}
	return out
}

// URLs returns the durable references of a fully resolved slot.
func URLs(photos []Photo) ([]string, error) {
	out := make([]string, 0, len(photos))
	for i, p := range photos {
		u, ok := p.URL()
		if !ok {
			return nil, fmt.Errorf("photo %d is still pending upload", i)
		}
		out = append(out, u)
	}
	return out, nil
}
