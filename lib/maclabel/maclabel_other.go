// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package maclabel

func attach(path, label string) error {
	return nil
}
