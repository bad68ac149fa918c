// Package script renders the mitmproxy addon that injects the preview header
// for a target domain, and manages the rendered file's lifetime on disk.
package script

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	_log "github.com/sirupsen/logrus"
)

var log = _log.WithField("at", "script")

// DefaultHeaderName is the header the generated addon sets on matched requests.
const DefaultHeaderName = "X-Gtm-Server-Preview"

// Options select what the generated addon matches and injects.
type Options struct {
	Domain      string // substring matched against the request host, case-sensitive
	HeaderName  string // defaults to DefaultHeaderName
	HeaderValue string // reaches the wire verbatim
}

const addonSource = `import mitmproxy.http
from mitmproxy import ctx

TARGET_DOMAIN = {{py .Domain}}
HEADER_NAME = {{py .HeaderName}}
HEADER_VALUE = {{py .HeaderValue}}


def request(flow: mitmproxy.http.HTTPFlow) -> None:
    if TARGET_DOMAIN in flow.request.pretty_host:
        flow.request.headers[HEADER_NAME] = HEADER_VALUE
        ctx.log.info(f"{HEADER_NAME}: {HEADER_VALUE} -> {flow.request.pretty_url}")
    else:
        ctx.log.debug(f"skipping {flow.request.pretty_url}: host does not contain {TARGET_DOMAIN}")


def response(flow: mitmproxy.http.HTTPFlow) -> None:
    if TARGET_DOMAIN in flow.request.pretty_host and flow.response is not None:
        ctx.log.info(f"response {flow.response.status_code} for {flow.request.pretty_url}")
`

var addonTemplate = template.Must(template.New("addon").Funcs(template.FuncMap{
	"py": pyString,
}).Parse(addonSource))

// Render produces the addon body. Identical options render identical bytes.
func Render(opts Options) ([]byte, error) {
	if opts.HeaderName == "" {
		opts.HeaderName = DefaultHeaderName
	}
	var buf bytes.Buffer
	if err := addonTemplate.Execute(&buf, opts); err != nil {
		return nil, errors.Wrap(err, "render addon template")
	}
	return buf.Bytes(), nil
}

// Matches mirrors the matching logic of the generated addon: a case-sensitive
// substring test of the target domain against the request host.
func Matches(domain, host string) bool {
	return strings.Contains(host, domain)
}

// writeBody is swappable for tests.
var writeBody = func(f *os.File, body []byte) (int, error) {
	return f.Write(body)
}

// WriteTemp writes the addon body to a uniquely named file under the system
// temp directory and returns its path. The file is created 0600: the header
// value is a preview token and should not be readable by other users. A
// failed write removes the file again rather than leaving a partial one.
func WriteTemp(body []byte) (string, error) {
	path := filepath.Join(os.TempDir(), "sgtm-debug-"+uuid.NewV4().String()+".py")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", errors.Wrap(err, "create addon file")
	}
	if _, err := writeBody(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "write addon file")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "close addon file")
	}
	return path, nil
}

// Remove deletes the addon file, best effort.
func Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Debug("remove addon file")
	}
}

// pyString renders s as a double-quoted Python string literal, so opaque
// domain and header values cannot break out of the generated source.
func pyString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
