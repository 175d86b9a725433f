//go:build windows && cgo

package probe

/*
#cgo LDFLAGS: -lole32 -loleaut32

#define COBJMACROS
#include <windows.h>
#include <ole2.h>
#include <oleauto.h>
#include <uiautomation.h>

// ============================================================================
// UI Automation helpers
// ============================================================================
//
// COM vtable calls are macros, which cgo cannot call. Every helper below
// takes and returns interface pointers as void* so the Go side only handles
// opaque handles. Ownership of every pointer written to an out parameter
// passes to the caller, who releases it with uiaRelease.
//
// ============================================================================

#define IMS_TREE_SCOPE_CHILDREN     2
#define IMS_TREE_SCOPE_DESCENDANTS  4
#define IMS_CONTROL_TYPE_PROPERTY   30003
#define IMS_NAME_PROPERTY           30005
#define IMS_BUTTON_CONTROL_TYPE     50000

static const CLSID imsCLSIDCUIAutomation =
    {0xff48dba4, 0x60ef, 0x4201, {0xaa, 0x87, 0x54, 0x10, 0x3e, 0xef, 0x59, 0x4e}};
static const IID imsIIDIUIAutomation =
    {0x30cbe57d, 0xd9d0, 0x452a, {0xab, 0x13, 0x7a, 0xc5, 0xac, 0x48, 0x25, 0xee}};

// uiaInit initializes COM on the calling thread and creates the automation
// object. *uninit is set when the caller must balance with CoUninitialize.
static HRESULT uiaInit(void** automation, int* uninit) {
    *automation = NULL;
    *uninit = 0;

    HRESULT hr = CoInitializeEx(NULL, COINIT_MULTITHREADED);
    if (SUCCEEDED(hr)) {
        *uninit = 1;
    } else if (hr != RPC_E_CHANGED_MODE) {
        return hr;
    }

    hr = CoCreateInstance(&imsCLSIDCUIAutomation, NULL, CLSCTX_INPROC_SERVER,
                          &imsIIDIUIAutomation, automation);
    if (FAILED(hr) && *uninit) {
        CoUninitialize();
        *uninit = 0;
    }
    return hr;
}

static void uiaUninit(void) {
    CoUninitialize();
}

static void uiaRelease(void* p) {
    if (p != NULL) IUnknown_Release((IUnknown*)p);
}

static HRESULT uiaRoot(void* automation, void** root) {
    *root = NULL;
    return IUIAutomation_GetRootElement((IUIAutomation*)automation, (IUIAutomationElement**)root);
}

static HRESULT uiaFind(void* automation, void* parent, PROPERTYID prop, VARIANT value,
                       TreeScope scope, int all, void** out) {
    IUIAutomationCondition* cond = NULL;
    HRESULT hr = IUIAutomation_CreatePropertyCondition((IUIAutomation*)automation, prop, value, &cond);
    if (FAILED(hr)) return hr;

    if (all) {
        hr = IUIAutomationElement_FindAll((IUIAutomationElement*)parent, scope, cond,
                                          (IUIAutomationElementArray**)out);
    } else {
        hr = IUIAutomationElement_FindFirst((IUIAutomationElement*)parent, scope, cond,
                                            (IUIAutomationElement**)out);
    }
    IUnknown_Release((IUnknown*)cond);
    return hr;
}

// uiaFindChildByName leaves *out NULL when no direct child has the name.
static HRESULT uiaFindChildByName(void* automation, void* parent, const WCHAR* name, void** out) {
    *out = NULL;

    VARIANT v;
    VariantInit(&v);
    v.vt = VT_BSTR;
    v.bstrVal = SysAllocString(name);
    if (v.bstrVal == NULL) return E_OUTOFMEMORY;

    HRESULT hr = uiaFind(automation, parent, IMS_NAME_PROPERTY, v,
                         IMS_TREE_SCOPE_CHILDREN, 0, out);
    VariantClear(&v);
    return hr;
}

static HRESULT uiaFindButtons(void* automation, void* parent, void** out) {
    *out = NULL;

    VARIANT v;
    VariantInit(&v);
    v.vt = VT_I4;
    v.lVal = IMS_BUTTON_CONTROL_TYPE;

    return uiaFind(automation, parent, IMS_CONTROL_TYPE_PROPERTY, v,
                   IMS_TREE_SCOPE_DESCENDANTS, 1, out);
}

static HRESULT uiaArrayLength(void* arr, int* n) {
    *n = 0;
    return IUIAutomationElementArray_get_Length((IUIAutomationElementArray*)arr, n);
}

static HRESULT uiaArrayGet(void* arr, int index, void** out) {
    *out = NULL;
    return IUIAutomationElementArray_GetElement((IUIAutomationElementArray*)arr, index,
                                                (IUIAutomationElement**)out);
}

static HRESULT uiaName(void* element, BSTR* out) {
    *out = NULL;
    return IUIAutomationElement_get_CurrentName((IUIAutomationElement*)element, out);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

// UIASource acquires the desktop tree through UI Automation.
type UIASource struct{}

// NewSource returns the platform Source.
func NewSource() Source {
	return UIASource{}
}

// Open initializes COM on a locked OS thread and creates the automation
// object. The thread stays locked until the Tree is closed.
func (UIASource) Open() (Tree, error) {
	runtime.LockOSThread()

	var automation unsafe.Pointer
	var uninit C.int
	if hr := C.uiaInit(&automation, &uninit); failed(hr) {
		runtime.UnlockOSThread()
		return nil, hresultError("create UIAutomation", hr)
	}
	return &uiaTree{automation: automation, uninit: uninit != 0}, nil
}

// uiaTree owns every COM pointer handed out through its elements and
// releases them all on Close.
type uiaTree struct {
	automation unsafe.Pointer
	uninit     bool
	owned      []unsafe.Pointer
	closed     bool
}

func (t *uiaTree) own(p unsafe.Pointer) {
	t.owned = append(t.owned, p)
}

func (t *uiaTree) Root() (Element, error) {
	if t.closed {
		return nil, errors.New("tree closed")
	}
	var root unsafe.Pointer
	if hr := C.uiaRoot(t.automation, &root); failed(hr) {
		return nil, hresultError("get root element", hr)
	}
	t.own(root)
	return &uiaElement{tree: t, ptr: root}, nil
}

func (t *uiaTree) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	for i := len(t.owned) - 1; i >= 0; i-- {
		C.uiaRelease(t.owned[i])
	}
	t.owned = nil
	C.uiaRelease(t.automation)
	t.automation = nil

	if t.uninit {
		C.uiaUninit()
	}
	runtime.UnlockOSThread()
	return nil
}

type uiaElement struct {
	tree *uiaTree
	ptr  unsafe.Pointer
}

func (e *uiaElement) FindChild(name string) (Element, error) {
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}

	var child unsafe.Pointer
	hr := C.uiaFindChildByName(e.tree.automation, e.ptr, (*C.WCHAR)(unsafe.Pointer(name16)), &child)
	if failed(hr) {
		return nil, hresultError("find first", hr)
	}
	if child == nil {
		return nil, nil
	}
	e.tree.own(child)
	return &uiaElement{tree: e.tree, ptr: child}, nil
}

func (e *uiaElement) FindDescendants(role Role) ([]Element, error) {
	if role != RoleButton {
		return nil, nil
	}

	var arr unsafe.Pointer
	if hr := C.uiaFindButtons(e.tree.automation, e.ptr, &arr); failed(hr) {
		return nil, hresultError("find all", hr)
	}
	if arr == nil {
		return nil, nil
	}
	e.tree.own(arr)

	var n C.int
	if hr := C.uiaArrayLength(arr, &n); failed(hr) {
		return nil, hresultError("array length", hr)
	}

	out := make([]Element, 0, int(n))
	for i := 0; i < int(n); i++ {
		var el unsafe.Pointer
		if hr := C.uiaArrayGet(arr, C.int(i), &el); failed(hr) || el == nil {
			continue
		}
		e.tree.own(el)
		out = append(out, &uiaElement{tree: e.tree, ptr: el})
	}
	return out, nil
}

func (e *uiaElement) Label() (string, error) {
	var bstr C.BSTR
	if hr := C.uiaName(e.ptr, &bstr); failed(hr) {
		return "", hresultError("get CurrentName", hr)
	}
	if bstr == nil {
		return "", nil
	}
	defer C.SysFreeString(bstr)

	n := int(C.SysStringLen(bstr))
	return windows.UTF16ToString(unsafe.Slice((*uint16)(unsafe.Pointer(bstr)), n)), nil
}

func failed(hr C.HRESULT) bool {
	return hr < 0
}

func hresultError(op string, hr C.HRESULT) error {
	return fmt.Errorf("%s: %w", op, windows.Errno(uintptr(uint32(hr))))
}
