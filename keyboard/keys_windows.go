//go:build windows

package keyboard

import "golang.design/x/hotkey"

const vkBack hotkey.Key = 0x08

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
	{Backspace, vkBack},
}
