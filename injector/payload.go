package injector

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Binject/debug/pe"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

// DefaultPayloadName is the agent library shipped next to the injector.
const DefaultPayloadName = "uiagent.dll"

// DetachExport is the agent export that stops its channel worker.
const DetachExport = "AgentDetach"

const imageFileDLL = 0x2000

var machineByArch = map[string]uint16{
	"386":   0x014c,
	"amd64": 0x8664,
	"arm64": 0xaa64,
}

// Payload describes a validated agent library on disk.
type Payload struct {
	Path string
	// DetachRVA is the relative address of DetachExport inside the image.
	DetachRVA uint32
}

// ResolvePayload turns name into an absolute path. A bare name is looked up
// next to the running executable.
func ResolvePayload(name string) (string, error) {
	if name == "" {
		name = DefaultPayloadName
	}
	path := name
	if !filepath.IsAbs(path) && !strings.ContainsAny(path, `/\`) {
		exe, err := os.Executable()
		if err != nil {
			return "", errors.Wrap(err, "locate injector executable")
		}
		path = filepath.Join(filepath.Dir(exe), name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", name)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", abs)
	}
	if st.IsDir() {
		return "", errors.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

// ValidatePayload checks that path is a DLL built for this process's
// architecture and that it exports DetachExport. The loader address is only
// meaningful in a target of the same bitness, so a mismatched image would
// never load there.
func ValidatePayload(path string) (*Payload, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	defer f.Close()

	if f.FileHeader.Characteristics&imageFileDLL == 0 {
		return nil, errors.Errorf("%s is not a DLL", path)
	}
	if want, ok := machineByArch[runtime.GOARCH]; ok && f.FileHeader.Machine != want {
		return nil, errors.Errorf("%s machine 0x%x does not match injector machine 0x%x", path, f.FileHeader.Machine, want)
	}

	exports, err := f.Exports()
	if err != nil {
		return nil, errors.Wrapf(err, "read exports of %s", path)
	}
	for _, exp := range exports {
		if exp.Name == DetachExport {
			return &Payload{Path: path, DetachRVA: exp.VirtualAddress}, nil
		}
	}
	return nil, errors.Errorf("%s does not export %s", path, DetachExport)
}

// EncodePath renders path the way the wide loader reads it: UTF-16LE with a
// two-byte terminator.
func EncodePath(path string) ([]byte, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	b, err := enc.Bytes([]byte(path))
	if err != nil {
		return nil, errors.Wrap(err, "encode payload path")
	}
	return append(b, 0, 0), nil
}
