// Package spool implements the filesystem-backed mailbox store. Each user owns
// a directory under the spool root holding one numbered .msg file per message:
//
//	<root>/<user>/<id>.msg
//
// A message file carries two header lines (Sender:, Subject:) followed by a
// Message: marker and the body. The layout is the integration point for
// external tooling and is kept byte-compatible with earlier deployments.
package spool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const messageExt = ".msg"

var (
	// ErrNoMessages reports an empty or not-yet-created mailbox. It is
	// deliberately distinct from storage faults so callers can answer
	// "no messages" instead of "server error".
	ErrNoMessages = errors.New("no messages")

	// ErrNotFound reports a message ID that does not exist in the mailbox.
	ErrNotFound = errors.New("message not found")

	// ErrInvalidName reports a mailbox name that cannot be used as a
	// directory name.
	ErrInvalidName = errors.New("invalid mailbox name")
)

// Store is the concurrency-safe mailbox table. Operations on the same mailbox
// are serialized through a per-username lock created on demand; different
// users' mailboxes proceed independently.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create spool root: %w", err)
	}
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// Deliver stores a new message in owner's mailbox and returns the assigned ID.
// The ID is max(existing IDs)+1, so two concurrent deliveries to the same
// mailbox never collide and a deleted top ID may be handed out again.
func (s *Store) Deliver(owner, sender, subject, body string) (int, error) {
	if !validName(owner) {
		return 0, ErrInvalidName
	}

	lock := s.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Join(s.root, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create mailbox: %w", err)
	}

	ids, err := s.scanIDs(dir)
	if err != nil {
		return 0, err
	}
	id := 1
	if len(ids) > 0 {
		id = ids[len(ids)-1] + 1
	}

	var record strings.Builder
	record.WriteString("Sender: " + sender + "\n")
	record.WriteString("Subject: " + subject + "\n")
	record.WriteString("Message:\n")
	record.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		record.WriteString("\n")
	}

	path := filepath.Join(dir, strconv.Itoa(id)+messageExt)
	if err := os.WriteFile(path, []byte(record.String()), 0o644); err != nil {
		return 0, fmt.Errorf("write message: %w", err)
	}
	return id, nil
}

// List enumerates owner's messages in ascending ID order. The returned IDs are
// the stored message IDs; Read and Delete accept exactly these numbers.
func (s *Store) List(owner string) ([]Summary, error) {
	if !validName(owner) {
		return nil, ErrInvalidName
	}

	lock := s.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Join(s.root, owner)
	ids, err := s.scanIDs(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoMessages
		}
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoMessages
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		msg, err := readMessage(dir, owner, id)
		if err != nil {
			// Deleted between scan and read; skip.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		summaries = append(summaries, Summary{ID: id, Subject: msg.Subject})
	}
	if len(summaries) == 0 {
		return nil, ErrNoMessages
	}
	return summaries, nil
}

// Read returns the message with the given stored ID.
func (s *Store) Read(owner string, id int) (Message, error) {
	if !validName(owner) {
		return Message{}, ErrInvalidName
	}

	lock := s.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	return readMessage(filepath.Join(s.root, owner), owner, id)
}

// Delete removes the message with the given stored ID, freeing its number for
// reuse on a later delivery.
func (s *Store) Delete(owner string, id int) error {
	if !validName(owner) {
		return ErrInvalidName
	}

	lock := s.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.root, owner, strconv.Itoa(id)+messageExt)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *Store) lockFor(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[owner]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[owner] = lock
	}
	return lock
}

// scanIDs returns the message IDs present in dir, sorted ascending.
func (s *Store) scanIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("scan mailbox: %w", err)
	}

	var ids []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem, ok := strings.CutSuffix(entry.Name(), messageExt)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(stem)
		if err != nil || id < 1 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func readMessage(dir, owner string, id int) (Message, error) {
	path := filepath.Join(dir, strconv.Itoa(id)+messageExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("read message: %w", err)
	}
	msg := parseRecord(data)
	msg.Owner = owner
	msg.ID = id
	return msg, nil
}

func parseRecord(data []byte) Message {
	var msg Message
	rest := string(data)
	for {
		line, tail, ok := strings.Cut(rest, "\n")
		if !ok {
			break
		}
		if line == "Message:" {
			msg.Body = tail
			break
		}
		if value, ok := strings.CutPrefix(line, "Sender: "); ok {
			msg.Sender = value
		} else if value, ok := strings.CutPrefix(line, "Subject: "); ok {
			msg.Subject = value
		}
		rest = tail
	}
	return msg
}

// validName rejects names that would escape the spool directory or collide
// with hidden files.
func validName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return name[0] != '.'
}
