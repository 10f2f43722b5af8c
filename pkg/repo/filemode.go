package repo

import (
	"os"

	"github.com/gritvcs/grit/pkg/object"
)

func modeFromFileInfo(info os.FileInfo) string {
	if info.Mode()&os.ModeSymlink != 0 {
		return object.ModeSymlink
	}
	if info.Mode()&0o111 != 0 {
		return object.ModeExecutable
	}
	return object.ModeFile
}

func normalizeFileMode(mode string) string {
	switch mode {
	case object.ModeExecutable, object.ModeSymlink:
		return mode
	}
	return object.ModeFile
}

func filePermFromMode(mode string) os.FileMode {
	if normalizeFileMode(mode) == object.ModeExecutable {
		return 0o755
	}
	return 0o644
}
