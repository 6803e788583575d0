package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"brio/audio"
	"brio/braille"
	"brio/clipboard"
	"brio/config"
	"brio/feedback"
	"brio/haptic"
	"brio/keyboard"
	"brio/keyboard/midi"
	"brio/typer"
)

const totalChecks = 5

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("brio doctor - interactive system diagnostics")
	fmt.Println("============================================")

	results := []bool{
		checkKeys(cfg.Input),
		checkAudio(cfg.AudioSettings()),
		checkHaptics(cfg.Haptics),
		checkClipboard(),
		checkTyper(),
	}

	allPass := true
	for _, ok := range results {
		allPass = allPass && ok
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func header(n int, title string) {
	fmt.Println()
	fmt.Printf("[%d/%d] %s\n", n, totalChecks, title)
}

func ask(question string) bool {
	resetTerminal()
	r := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/n]: ", question)
	answer, _ := r.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func checkKeys(in config.InputConfig) bool {
	header(1, "Key capture")

	var src keyboard.Source
	if in.Source == config.SourceMIDI {
		ports, err := midi.Inputs()
		if err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return false
		}
		fmt.Printf("  MIDI inputs: %s\n", strings.Join(ports, ", "))
		src = midi.New(in.MidiPort, in.MidiBaseNote)
	} else {
		msg, err := keyboard.Diagnose()
		if err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return false
		}
		fmt.Printf("  %s\n", msg)
		src = keyboard.New()
	}

	if err := src.Register(); err != nil {
		fmt.Printf("  FAIL: could not register key source: %v\n", err)
		return false
	}
	defer src.Unregister()

	fmt.Println("Press and release F (dot 1)...")
	timeout := time.After(10 * time.Second)
	sawDown := false
	for {
		select {
		case ev := <-src.Events():
			if ev.Key != 'f' {
				continue
			}
			if ev.Down {
				sawDown = true
				continue
			}
			if sawDown {
				resetTerminal()
				fmt.Println("  PASS: key down and up detected")
				return true
			}
		case <-timeout:
			if sawDown {
				fmt.Println("  FAIL: key down seen but no key up")
			} else {
				fmt.Println("  FAIL: timeout waiting for key")
			}
			return false
		}
	}
}

func checkAudio(settings audio.Settings) bool {
	header(2, "Audio output")

	eng := audio.NewEngine(settings, nil)
	defer eng.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := eng.Unlock(ctx); err != nil {
		fmt.Printf("  FAIL: cannot start audio output: %v\n", err)
		return false
	}
	fmt.Printf("  Output running at %d Hz\n", settings.SampleRate)

	note, _ := feedback.NoteOf('f')
	h := eng.PlayPiano(note.Freq, 600*time.Millisecond)
	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: tone did not finish")
		return false
	}

	if !ask("Did you hear a short piano tone?") {
		fmt.Println("  FAIL: tone not confirmed")
		return false
	}
	fmt.Println("  PASS: audio output verified by user")
	return true
}

func checkHaptics(cfg config.HapticsConfig) bool {
	header(3, "Haptic actuator")

	if !cfg.Enabled {
		fmt.Println("  SKIP: haptics disabled in config")
		return true
	}

	paths := []string{cfg.Device}
	if cfg.Device == "" {
		paths = haptic.FindHIDRaw()
	}
	if len(paths) == 0 {
		fmt.Println("  SKIP: no hidraw devices found (haptics are optional)")
		return true
	}

	var act *haptic.HIDRaw
	var err error
	for _, p := range paths {
		if act, err = haptic.OpenHIDRaw(p); err == nil {
			fmt.Printf("  Using %s\n", p)
			break
		}
	}
	if act == nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	d := haptic.NewDispatcher(act, cfg.Debounce)
	defer d.Close()

	for dot := 1; dot <= 6; dot++ {
		d.Pulse(braille.Dot(dot))
		time.Sleep(150 * time.Millisecond)
	}

	if !ask("Did you feel six pulses?") {
		fmt.Println("  FAIL: pulses not confirmed")
		return false
	}
	fmt.Println("  PASS: haptic pulses verified by user")
	return true
}

func checkClipboard() bool {
	header(4, "Clipboard copy")

	testStr := fmt.Sprintf("brio-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}

func checkTyper() bool {
	header(5, "Keystroke output")

	if _, err := typer.New(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		return false
	}
	fmt.Println("  PASS: virtual keyboard initialized")
	return true
}
