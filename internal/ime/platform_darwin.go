//go:build darwin

package ime

/*
#cgo LDFLAGS: -framework Carbon -framework CoreFoundation

#include <Carbon/Carbon.h>
#include <stdlib.h>
#include <string.h>

// Copies the ID of the current keyboard input source into a malloc'd
// UTF-8 buffer. Returns NULL when the source or its ID is unavailable.
static char* currentInputSourceID(void) {
    TISInputSourceRef source = TISCopyCurrentKeyboardInputSource();
    if (source == NULL) return NULL;

    CFStringRef sourceID = (CFStringRef)TISGetInputSourceProperty(source, kTISPropertyInputSourceID);
    if (sourceID == NULL) {
        CFRelease(source);
        return NULL;
    }

    CFIndex length = CFStringGetLength(sourceID);
    CFIndex size = CFStringGetMaximumSizeForEncoding(length, kCFStringEncodingUTF8) + 1;
    char* buf = (char*)malloc(size);
    if (buf == NULL) {
        CFRelease(source);
        return NULL;
    }
    if (!CFStringGetCString(sourceID, buf, size, kCFStringEncodingUTF8)) {
        free(buf);
        buf = NULL;
    }

    CFRelease(source);
    return buf;
}

// Result codes for selectInputSource.
#define SELECT_OK         0
#define SELECT_NOT_FOUND  1
#define SELECT_NO_FILTER  2
#define SELECT_FAILED     3

static int selectInputSource(const char* id, OSStatus* status) {
    CFStringRef sourceID = CFStringCreateWithCString(NULL, id, kCFStringEncodingUTF8);
    if (sourceID == NULL) return SELECT_NO_FILTER;

    const void* keys[] = { kTISPropertyInputSourceID };
    const void* values[] = { sourceID };
    CFDictionaryRef filter = CFDictionaryCreate(NULL, keys, values, 1,
        &kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
    CFRelease(sourceID);
    if (filter == NULL) return SELECT_NO_FILTER;

    CFArrayRef sources = TISCreateInputSourceList(filter, false);
    CFRelease(filter);
    if (sources == NULL) return SELECT_NOT_FOUND;

    if (CFArrayGetCount(sources) == 0) {
        CFRelease(sources);
        return SELECT_NOT_FOUND;
    }

    TISInputSourceRef selected = (TISInputSourceRef)CFArrayGetValueAtIndex(sources, 0);
    *status = TISSelectInputSource(selected);
    CFRelease(sources);

    return *status == noErr ? SELECT_OK : SELECT_FAILED;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// DarwinPlatform uses the Text Input Sources API from Carbon/HIToolbox.
// Tokens are input source IDs such as "com.apple.keylayout.ABC".
type DarwinPlatform struct{}

// NewDarwinPlatform creates the macOS backend.
func NewDarwinPlatform() *DarwinPlatform {
	return &DarwinPlatform{}
}

// NewPlatform returns the backend for the current OS.
func NewPlatform() Backend {
	return NewDarwinPlatform()
}

func (p *DarwinPlatform) Name() string {
	return "macos"
}

func (p *DarwinPlatform) Current() (string, error) {
	cID := C.currentInputSourceID()
	if cID == nil {
		return "", errors.New("ime: failed to get current input source")
	}
	defer C.free(unsafe.Pointer(cID))
	return C.GoString(cID), nil
}

func (p *DarwinPlatform) Select(token string) error {
	cID := C.CString(token)
	defer C.free(unsafe.Pointer(cID))

	var status C.OSStatus
	switch C.selectInputSource(cID, &status) {
	case C.SELECT_OK:
		return nil
	case C.SELECT_NOT_FOUND:
		return fmt.Errorf("%w: '%s'", ErrSourceNotFound, token)
	case C.SELECT_NO_FILTER:
		return errors.New("ime: failed to create filter dictionary")
	default:
		return fmt.Errorf("ime: failed to select input source (error code: %d)", int(status))
	}
}

var _ Backend = (*DarwinPlatform)(nil)
