//go:build darwin

package typer

import "github.com/micmonay/keybd_event"

// kVK_Delete is the backspace key on Mac keyboards.
const backspaceKey = keybd_event.VK_DELETE
