package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const dataURIPrefix = "data:"

// InlineStore encodes objects as base64 data URIs; the reference is the object.
type InlineStore struct{}

func NewInlineStore() *InlineStore {
	return &InlineStore{}
}

func (s *InlineStore) Put(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	return EncodeDataURI(contentType, data), nil
}

func (s *InlineStore) Open(_ context.Context, ref string) (Object, error) {
	mime, data, err := DecodeDataURI(ref)
	if err != nil {
		return Object{}, err
	}
	return Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: mime,
		Size:        int64(len(data)),
	}, nil
}

// Delete is a no-op; the bytes disappear with the row that holds the reference.
func (s *InlineStore) Delete(context.Context, string) error {
	return nil
}

func EncodeDataURI(mime string, data []byte) string {
	return dataURIPrefix + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func DecodeDataURI(ref string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(ref, dataURIPrefix)
	if !ok {
		return "", nil, ErrInvalidRef
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidRef
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mime == "" {
		return "", nil, fmt.Errorf("%w: only base64 data URIs are supported", ErrInvalidRef)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	return mime, data, nil
}
