package main

import (
	"fmt"
	"os"

	"github.com/gordonklaus/portaudio"
)

// Lists audio devices so "no usable input device" can be diagnosed.
func main() {
	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "portaudio:", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	def, _ := portaudio.DefaultInputDevice()

	devs, err := portaudio.Devices()
	if err != nil {
		fmt.Fprintln(os.Stderr, "list devices:", err)
		os.Exit(1)
	}

	for _, d := range devs {
		mark := " "
		if def != nil && d.Name == def.Name {
			mark = "*"
		}
		fmt.Printf("%s %-40s in:%-3d out:%-3d %.0f Hz\n",
			mark, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}
}
