package cmd

import (
	"golang.org/x/sys/windows"
)

const (
	smCxScreen = 0
	smCyScreen = 1
)

var getSystemMetrics = windows.NewLazySystemDLL("user32.dll").NewProc("GetSystemMetrics")

func desktopSize() (int, int, bool) {
	if getSystemMetrics.Find() != nil {
		return 0, 0, false
	}
	w, _, _ := getSystemMetrics.Call(smCxScreen)
	h, _, _ := getSystemMetrics.Call(smCyScreen)
	return int(w), int(h), w != 0 && h != 0
}
