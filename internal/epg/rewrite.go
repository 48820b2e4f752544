package epg

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

const (
	xmlDeclaration = "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"
	xmlDoctype     = "<!DOCTYPE tv SYSTEM \"xmltv.dtd\">\n"
)

// IconObfuscator obscures an <icon src="…"> value; nil disables icon
// rewriting entirely.
type IconObfuscator interface {
	Obscure(url string) (string, error)
}

// Options configures one Rewrite call (spec §4.7).
type Options struct {
	// Shift is the programme start/stop timeshift; zero means no time
	// rewriting.
	Shift time.Duration

	// ChannelAllowed, if non-nil, is consulted for every <channel id="…">
	// and <programme channel="…">; entries it rejects are elided
	// entirely, subtree included (spec §4.7 "skip_depth counter").
	ChannelAllowed func(id string) bool

	// Icons, if non-nil, rewrites every <icon src="…"> to
	// IconBaseURL + obscured-token.
	Icons       IconObfuscator
	IconBaseURL string
}

// NeedsRewrite reports whether opts requires touching the document at
// all (spec §4.7 "A zero offset with no other transform short-circuits
// to serve the raw file").
func (o Options) NeedsRewrite() bool {
	return o.Shift != 0 || o.ChannelAllowed != nil || o.Icons != nil
}

// OpenSource wraps r to decompress transparently if it's gzip-encoded
// (spec §4.7 "Reads a (possibly gzipped) source XMLTV file"), detected
// by sniffing the gzip magic number rather than trusting a file
// extension or header.
func OpenSource(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("epg: peek source: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("epg: open gzip source: %w", err)
		}
		return gz, nil
	}
	return br, nil
}

// Rewrite streams src through the SAX-style transform described by opts
// and writes a gzip-compressed XMLTV document to w (spec §4.7). The XML
// declaration and DOCTYPE are emitted by hand rather than through the
// xml.Encoder, which would otherwise escape the DTD's quoted system
// identifier.
func Rewrite(w io.Writer, src io.Reader, opts Options) error {
	gz := gzip.NewWriter(w)
	defer gz.Close()

	if _, err := io.WriteString(gz, xmlDeclaration); err != nil {
		return fmt.Errorf("epg: write xml declaration: %w", err)
	}
	if _, err := io.WriteString(gz, xmlDoctype); err != nil {
		return fmt.Errorf("epg: write doctype: %w", err)
	}

	dec := xml.NewDecoder(src)
	enc := xml.NewEncoder(gz)
	defer enc.Flush()

	skipDepth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("epg: read xml token: %w", err)
		}

		switch t := tok.(type) {
		case xml.ProcInst, xml.Directive:
			continue // declaration/doctype already hand-written above

		case xml.StartElement:
			if skipDepth > 0 {
				skipDepth++
				continue
			}
			if shouldSkipElement(t, opts) {
				skipDepth = 1
				continue
			}
			rewritten, err := rewriteStart(t, opts)
			if err != nil {
				return err
			}
			if err := enc.EncodeToken(rewritten); err != nil {
				return fmt.Errorf("epg: write start element: %w", err)
			}

		case xml.EndElement:
			if skipDepth > 0 {
				skipDepth--
				continue
			}
			if err := enc.EncodeToken(t); err != nil {
				return fmt.Errorf("epg: write end element: %w", err)
			}

		default:
			if skipDepth > 0 {
				continue
			}
			if err := enc.EncodeToken(tok); err != nil {
				return fmt.Errorf("epg: write token: %w", err)
			}
		}
	}
	return enc.Flush()
}

// shouldSkipElement decides whether a <channel>/<programme> subtree
// should be elided per opts.ChannelAllowed (spec §4.7 "elide entire
// <channel> or <programme> subtrees whose id/channel attribute does not
// match the per-user filter").
func shouldSkipElement(el xml.StartElement, opts Options) bool {
	if opts.ChannelAllowed == nil {
		return false
	}
	var attrName string
	switch el.Name.Local {
	case "channel":
		attrName = "id"
	case "programme":
		attrName = "channel"
	default:
		return false
	}
	for _, a := range el.Attr {
		if a.Name.Local == attrName {
			return !opts.ChannelAllowed(a.Value)
		}
	}
	return false
}

func rewriteStart(el xml.StartElement, opts Options) (xml.StartElement, error) {
	switch el.Name.Local {
	case "programme":
		if opts.Shift == 0 {
			return el, nil
		}
		return rewriteProgrammeTimes(el, opts.Shift), nil
	case "icon":
		if opts.Icons == nil {
			return el, nil
		}
		return rewriteIconSrc(el, opts)
	default:
		return el, nil
	}
}

func rewriteProgrammeTimes(el xml.StartElement, shift time.Duration) xml.StartElement {
	out := el.Copy()
	for i, a := range out.Attr {
		if a.Name.Local == "start" || a.Name.Local == "stop" {
			out.Attr[i].Value = shiftXMLTVTime(a.Value, shift)
		}
	}
	return out
}

func rewriteIconSrc(el xml.StartElement, opts Options) (xml.StartElement, error) {
	out := el.Copy()
	for i, a := range out.Attr {
		if a.Name.Local != "src" || a.Value == "" {
			continue
		}
		token, err := opts.Icons.Obscure(a.Value)
		if err != nil {
			return el, fmt.Errorf("epg: obscure icon src: %w", err)
		}
		out.Attr[i].Value = opts.IconBaseURL + token
	}
	return out, nil
}

// Empty returns the minimal gzip-free placeholder response used when no
// source file exists yet (spec §4.7, matching the teacher/source's empty
// <tv> element without a generator attribute dependency on config).
func Empty() []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlDeclaration)
	buf.WriteString(xmlDoctype)
	buf.WriteString(`<tv generator-info-name="ipxyd" generator-info-url=""></tv>`)
	return buf.Bytes()
}
