package mpd

import (
	"strings"
	"time"

	"github.com/xeptore/mpdq/dash/value"
	"github.com/xeptore/mpdq/dash/xmlnode"
)

// The read* helpers overwrite dst only when the attribute is present and
// parses. A malformed attribute leaves the default or inherited value intact.

func readString(n xmlnode.Node, name string, dst *string) {
	if v, ok := n.Attr(name); ok {
		*dst = v
	}
}

func readUint(n xmlnode.Node, name string, dst *uint32) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.Uint(v); ok {
			*dst = p
		}
	}
}

func readUint64(n xmlnode.Node, name string, dst *uint64) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.Uint64(v); ok {
			*dst = p
		}
	}
}

func readInt(n xmlnode.Node, name string, dst *int64) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.Int(v); ok {
			*dst = p
		}
	}
}

func readBool(n xmlnode.Node, name string, dst *bool) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.Bool(v); ok {
			*dst = p
		}
	}
}

func readDouble(n xmlnode.Node, name string, dst *float64) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.Double(v); ok {
			*dst = p
		}
	}
}

func readDuration(n xmlnode.Node, name string, dst *int64) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.ParseDuration(v); ok {
			*dst = p
		}
	}
}

func readDateTime(n xmlnode.Node, name string, dst **time.Time) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.ParseDateTime(v); ok {
			*dst = &p
		}
	}
}

func readRatio(n xmlnode.Node, name string, dst **value.Ratio) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.ParseRatio(v); ok {
			*dst = &p
		}
	}
}

func readFrameRate(n xmlnode.Node, name string, dst **value.FrameRate) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.ParseFrameRate(v); ok {
			*dst = &p
		}
	}
}

func readRange(n xmlnode.Node, name string, dst **value.Range) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.ParseRange(v); ok {
			*dst = &p
		}
	}
}

func readCondUint(n xmlnode.Node, name string, dst **value.CondUint) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.ParseCondUint(v); ok {
			*dst = &p
		}
	}
}

func readSAP(n xmlnode.Node, name string, dst *value.SAPType) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.ParseSAPType(v); ok {
			*dst = p
		}
	}
}

func readStrings(n xmlnode.Node, name string, dst *[]string) {
	if v, ok := n.Attr(name); ok {
		*dst = value.StringVector(v)
	}
}

func readUints(n xmlnode.Node, name string, dst *[]uint32) {
	if v, ok := n.Attr(name); ok {
		if p, ok := value.UintVector(v); ok {
			*dst = p
		}
	}
}

func text(n xmlnode.Node) string {
	return strings.TrimSpace(n.Text())
}
