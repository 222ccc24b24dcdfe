// Package storage keeps job images either in an S3-compatible bucket or inline in the job row.
//
// A stored object is addressed by an opaque reference string: "s3://<bucket>/<key>" for
// the bucket store and "data:<mime>;base64,<payload>" for the inline store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"platestyle/imaging"
	"platestyle/metrics"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidRef = errors.New("invalid storage reference")
)

type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

type Store interface {
	// Put stores data under key and returns the reference to persist.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Open(ctx context.Context, ref string) (Object, error)
	Delete(ctx context.Context, ref string) error
}

func InputKey(userID int64, jobID, mime string) string {
	return fmt.Sprintf("inputs/%d/%s.%s", userID, jobID, imaging.Extension(mime))
}

func ResultKey(userID int64, jobID, mime string) string {
	return fmt.Sprintf("results/%d/%s.%s", userID, jobID, imaging.Extension(mime))
}

// Multi writes to its primary store and resolves references of any known kind.
type Multi struct {
	primary Store
	s3      *S3Store
	inline  *InlineStore
}

// NewMulti returns a store backed by s3 when it is non-nil, otherwise by inline data URIs.
func NewMulti(s3 *S3Store) *Multi {
	m := &Multi{s3: s3, inline: NewInlineStore()}
	if s3 != nil {
		m.primary = s3
	} else {
		m.primary = m.inline
	}
	return m
}

func (m *Multi) Backend() string {
	if m.s3 != nil {
		return "s3"
	}
	return "inline"
}

func (m *Multi) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ref, err := m.primary.Put(ctx, key, contentType, data)
	observe(m.Backend(), "put", err)
	return ref, err
}

func (m *Multi) Open(ctx context.Context, ref string) (Object, error) {
	s, backend, err := m.resolve(ref)
	if err != nil {
		return Object{}, err
	}
	obj, err := s.Open(ctx, ref)
	observe(backend, "open", err)
	return obj, err
}

func (m *Multi) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	s, backend, err := m.resolve(ref)
	if err != nil {
		return err
	}
	err = s.Delete(ctx, ref)
	observe(backend, "delete", err)
	return err
}

func (m *Multi) resolve(ref string) (Store, string, error) {
	switch {
	case strings.HasPrefix(ref, dataURIPrefix):
		return m.inline, "inline", nil
	case strings.HasPrefix(ref, s3RefPrefix):
		if m.s3 == nil {
			return nil, "", fmt.Errorf("%w: object storage is not configured", ErrInvalidRef)
		}
		return m.s3, "s3", nil
	default:
		return nil, "", ErrInvalidRef
	}
}

func observe(backend, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StorageOpsTotal.WithLabelValues(backend, op, status).Inc()
}
