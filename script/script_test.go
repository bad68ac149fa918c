package script_test

import (
	"os"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/sgtm-tools/sgtm-debug/script"
)

func TestRender(t *testing.T) {
	c := qt.New(t)

	body, err := script.Render(script.Options{
		Domain:      "example.com",
		HeaderValue: "ZW52LWRldjEyMzQ1",
	})
	c.Assert(err, qt.IsNil)

	src := string(body)
	c.Assert(src, qt.Contains, `TARGET_DOMAIN = "example.com"`)
	c.Assert(src, qt.Contains, `HEADER_NAME = "X-Gtm-Server-Preview"`)
	c.Assert(src, qt.Contains, `HEADER_VALUE = "ZW52LWRldjEyMzQ1"`)

	// the request hook matches by substring and set-or-overwrites the header
	c.Assert(src, qt.Contains, "if TARGET_DOMAIN in flow.request.pretty_host:")
	c.Assert(src, qt.Contains, "flow.request.headers[HEADER_NAME] = HEADER_VALUE")

	// the response hook reports the status code for matched hosts
	c.Assert(src, qt.Contains, "flow.response.status_code")
}

func TestRenderHeaderNameOverride(t *testing.T) {
	c := qt.New(t)

	body, err := script.Render(script.Options{
		Domain:      "example.com",
		HeaderName:  "X-Preview-Env",
		HeaderValue: "abc",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(body), qt.Contains, `HEADER_NAME = "X-Preview-Env"`)
}

func TestRenderEscapesPythonLiterals(t *testing.T) {
	c := qt.New(t)

	body, err := script.Render(script.Options{
		Domain:      "example.com",
		HeaderValue: `va"l\ue` + "\n",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(string(body), qt.Contains, `HEADER_VALUE = "va\"l\\ue\n"`)
}

func TestRenderIsDeterministic(t *testing.T) {
	c := qt.New(t)

	opts := script.Options{Domain: "example.com", HeaderValue: "ZW52LWRldjEyMzQ1"}
	first, err := script.Render(opts)
	c.Assert(err, qt.IsNil)
	second, err := script.Render(opts)
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.DeepEquals, first)
}

func TestMatches(t *testing.T) {
	c := qt.New(t)

	// substring, not equality
	c.Assert(script.Matches("example.com", "example.com"), qt.IsTrue)
	c.Assert(script.Matches("example.com", "www.example.com"), qt.IsTrue)
	c.Assert(script.Matches("example.com", "example.com.cdn.net"), qt.IsTrue)
	c.Assert(script.Matches("example.com", "example.org"), qt.IsFalse)

	// case-sensitive
	c.Assert(script.Matches("Example.com", "www.example.com"), qt.IsFalse)

	// the empty domain is a substring of every host
	c.Assert(script.Matches("", "anything.example.net"), qt.IsTrue)
}

func TestWriteTempAndRemove(t *testing.T) {
	c := qt.New(t)

	body := []byte("# addon\n")
	path, err := script.WriteTemp(body)
	c.Assert(err, qt.IsNil)
	defer script.Remove(path)

	got, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, body)

	info, err := os.Stat(path)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Mode().Perm(), qt.Equals, os.FileMode(0o600))
	c.Assert(strings.HasSuffix(path, ".py"), qt.IsTrue)

	// each run gets its own file
	other, err := script.WriteTemp(body)
	c.Assert(err, qt.IsNil)
	c.Assert(other, qt.Not(qt.Equals), path)
	script.Remove(other)

	script.Remove(path)
	_, err = os.Stat(path)
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	// removing again (or nothing) is fine
	script.Remove(path)
	script.Remove("")
}
