//go:build !unix

package genlog

import "os"

// Advisory locks are not available here; the in-process mutex still
// serializes appends from one Logger.

func lockExclusive(*os.File) error { return nil }

func lockShared(*os.File) error { return nil }

func unlock(*os.File) error { return nil }
