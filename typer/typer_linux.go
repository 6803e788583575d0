//go:build linux

package typer

import "github.com/micmonay/keybd_event"

const backspaceKey = keybd_event.VK_BACKSPACE
