// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

package maclabel

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// smackLabelXattr is the extended attribute SMACK reads for access
// control on a filesystem object. Devices using SELinux instead rely
// on a policy file context transition and have no use for this
// attribute; setting it there is inert.
const smackLabelXattr = "security.SMACK64"

func attach(path, label string) error {
	if label == "" {
		return nil
	}
	if err := unix.Setxattr(path, smackLabelXattr, []byte(label), 0); err != nil {
		if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
			return nil
		}
		return fmt.Errorf("maclabel: setxattr %s on %s: %w", smackLabelXattr, path, err)
	}
	return nil
}
