// Copyright 2023 the eql authors
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package analytics persists query analytics as
// yaml documents holding free-form metadata plus
// the canonical query text. Files ending in .zst
// are transparently zstd-compressed.
package analytics

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"sigs.k8s.io/yaml"

	"github.com/itsnotapt/eql/expr"
)

// Document is the persisted form of one analytic.
type Document struct {
	Metadata map[string]interface{} `json:"metadata"`
	Query    string                 `json:"query"`
}

// ID returns the document's metadata id,
// or "" if none is set.
func (d *Document) ID() string {
	if v, ok := d.Metadata["id"].(string); ok {
		return v
	}
	return ""
}

// Fill defaults the metadata id to a fresh uuid
// when none is present, returning meta.
func Fill(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		meta = make(map[string]interface{})
	}
	if _, ok := meta["id"]; !ok {
		meta["id"] = uuid.NewString()
	}
	return meta
}

// FromAnalytic renders a into its persisted form,
// defaulting a missing metadata id.
func FromAnalytic(a *expr.EqlAnalytic) *Document {
	meta := make(map[string]interface{}, len(a.Metadata)+1)
	for k, v := range a.Metadata {
		meta[k] = v
	}
	return &Document{Metadata: Fill(meta), Query: expr.ToString(a.Query)}
}

// Marshal encodes docs as a yaml document.
func Marshal(docs []*Document) ([]byte, error) {
	return yaml.Marshal(docs)
}

// Unmarshal decodes a yaml document list.
func Unmarshal(data []byte) ([]*Document, error) {
	var docs []*Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return docs, nil
}

func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// Store writes docs to path as yaml,
// zstd-compressing when path ends in .zst.
func Store(path string, docs []*Document) error {
	data, err := Marshal(docs)
	if err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	if compressed(path) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("analytics: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads the documents stored at path,
// zstd-decompressing when path ends in .zst.
func Load(path string) ([]*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if compressed(path) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("analytics: %w", err)
		}
		data, err = dec.DecodeAll(data, nil)
		dec.Close()
		if err != nil {
			return nil, fmt.Errorf("analytics %s: %w", path, err)
		}
	}
	return Unmarshal(data)
}
