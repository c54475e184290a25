package dom

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strings"
)

// CheckIntegrity reports whether data matches a subresource integrity
// value. Any of several space-separated hashes may match; options after a
// "?" are ignored. Only sha256, sha384 and sha512 are recognised.
func CheckIntegrity(data []byte, integrity string) bool {
	for _, token := range strings.Fields(integrity) {
		algo, digest, ok := strings.Cut(token, "-")
		if !ok {
			continue
		}
		digest, _, _ = strings.Cut(digest, "?")

		var sum []byte
		switch strings.ToLower(algo) {
		case "sha256":
			s := sha256.Sum256(data)
			sum = s[:]
		case "sha384":
			s := sha512.Sum384(data)
			sum = s[:]
		case "sha512":
			s := sha512.Sum512(data)
			sum = s[:]
		default:
			continue
		}

		if base64.StdEncoding.EncodeToString(sum) == digest {
			return true
		}
	}
	return false
}

var eventHandlers = makeSet(
	// global
	"onabort", "onauxclick", "onbeforeinput", "onbeforematch", "onbeforetoggle", "onblur",
	"oncancel", "onchange", "onclick", "onclose", "oncommand", "oncontextlost",
	"oncontextmenu", "oncontextrestored", "oncopy", "oncuechange", "oncut", "ondblclick",
	"onerror", "onfocus", "onfocusin", "onfocusout", "onformdata", "oninput", "oninvalid",
	"onload", "onpaste", "onreset", "onresize", "onscroll", "onscrollend", "onsearch",
	"onsecuritypolicyviolation", "onselect", "onselectionchange", "onselectstart",
	"onslotchange", "onsubmit", "ontoggle", "onwheel", "onmousewheel",
	// keyboard
	"onkeydown", "onkeypress", "onkeyup",
	// mouse
	"onmousedown", "onmouseenter", "onmouseleave", "onmousemove", "onmouseout",
	"onmouseover", "onmouseup",
	// drag and drop
	"ondrag", "ondragend", "ondragenter", "ondragexit", "ondragleave", "ondragover",
	"ondragstart", "ondrop",
	// media
	"oncanplay", "oncanplaythrough", "ondurationchange", "onemptied", "onended",
	"onloadeddata", "onloadedmetadata", "onloadstart", "onpause", "onplay", "onplaying",
	"onprogress", "onratechange", "onseeked", "onseeking", "onstalled", "onsuspend",
	"ontimeupdate", "onvolumechange", "onwaiting",
	// pointer and touch
	"onpointerdown", "onpointerup", "onpointermove", "onpointerover", "onpointerout",
	"onpointerenter", "onpointerleave", "onpointercancel", "onpointerrawupdate",
	"ongotpointercapture", "onlostpointercapture",
	"ontouchstart", "ontouchend", "ontouchmove", "ontouchcancel",
	// animation and transition
	"onanimationstart", "onanimationend", "onanimationiteration", "onanimationcancel",
	"ontransitionstart", "ontransitionend", "ontransitionrun", "ontransitioncancel",
	"onwebkitanimationstart", "onwebkitanimationend", "onwebkitanimationiteration",
	"onwebkittransitionend",
	// window
	"onafterprint", "onbeforeprint", "onbeforeunload", "onhashchange", "onlanguagechange",
	"onmessage", "onmessageerror", "onoffline", "ononline", "onpagehide", "onpagereveal",
	"onpageshow", "onpageswap", "onpopstate", "onrejectionhandled", "onstorage",
	"onunhandledrejection", "onunload", "onorientationchange", "ondevicemotion",
	"ondeviceorientation",
	// document
	"onreadystatechange", "onvisibilitychange", "onfullscreenchange", "onfullscreenerror",
	"onpointerlockchange", "onpointerlockerror",
	// svg
	"onbegin", "onend", "onrepeat", "onactivate", "onzoom",
)

func makeSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// IsEventHandler reports whether an attribute name is a script event
// handler.
func IsEventHandler(name string) bool {
	return eventHandlers[strings.ToLower(name)]
}
