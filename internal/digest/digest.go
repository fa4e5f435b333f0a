// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package digest computes content digests of files, strings, and byte lists.
//
// Every digest in the system is a lowercase hex-encoded BLAKE2b-256 sum.
// File digests are memoized by the (path, ctime, mtime, size) stat tuple so
// that a dirtiness check that touches the same file many times in one run
// only reads it once.
package digest

import (
	"encoding/hex"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// EmptySetDigest is the fixed digest returned for an empty set of paths.
var EmptySetDigest = StringDigest("")

// sum returns the lowercase hex BLAKE2b-256 digest of b.
func sum(b []byte) string {
	h := blake2b.Sum256(b)
	return hex.EncodeToString(h[:])
}

// StringDigest returns the digest of s's bytes.
func StringDigest(s string) string {
	return sum([]byte(s))
}

// DigestOfList returns an order-independent digest of items: each item is
// hex-digested individually, the hex digests are sorted, and the sorted,
// concatenated digests are hashed once more.
func DigestOfList(items []string) string {
	digests := make([]string, len(items))
	for i, it := range items {
		digests[i] = StringDigest(it)
	}
	sort.Strings(digests)
	return sum([]byte(strings.Join(digests, "")))
}

// FileDigest hashes the contents of path. It returns ("", false, nil) if the
// file does not exist, and ("", false, err) for any other I/O error.
//
// Results are memoized by the caller via a Memo; FileDigest itself always
// reads the file.
func FileDigest(path string) (digest string, ok bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return sum(b), true, nil
}

// DependencyDigest computes the digest of a set of file paths: each path's
// file digest is looked up (missing files are dropped, setting anyMissing),
// the surviving digests are sorted, and the concatenation is hashed. The
// empty set yields EmptySetDigest.
//
// m may be nil, in which case every FileDigest call hits the filesystem
// directly.
func DependencyDigest(m *Memo, paths []string) (result string, anyMissing bool, err error) {
	if len(paths) == 0 {
		return EmptySetDigest, false, nil
	}

	fileDigests := make([]string, 0, len(paths))
	for _, p := range paths {
		var (
			d  string
			ok bool
		)
		if m != nil {
			d, ok, err = m.FileDigest(p)
		} else {
			d, ok, err = FileDigest(p)
		}
		if err != nil {
			return "", false, err
		}
		if !ok {
			anyMissing = true
			continue
		}
		fileDigests = append(fileDigests, d)
	}

	sort.Strings(fileDigests)
	return sum([]byte(strings.Join(fileDigests, ""))), anyMissing, nil
}
