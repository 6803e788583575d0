//go:build darwin

package keyboard

import "golang.design/x/hotkey"

var bindings = []struct {
	sym rune
	key hotkey.Key
}{
	{'f', hotkey.KeyF},
	{'e', hotkey.KeyE},
	{'w', hotkey.KeyW},
	{'j', hotkey.KeyJ},
	{'i', hotkey.KeyI},
	{'o', hotkey.KeyO},
	{Space, hotkey.KeySpace},
	// kVK_Delete is the key labelled backspace on Mac keyboards
	{Backspace, hotkey.KeyDelete},
}
