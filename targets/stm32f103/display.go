//go:build stm32f103

package main

import (
	"freqscale/core"
	"image/color"
	"machine"
	"strconv"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// statusDisplay shows load, level and load-generator state on a 128x64
// SSD1306 over I2C1
type statusDisplay struct {
	dev ssd1306.Device
}

func newStatusDisplay(bus *machine.I2C) *statusDisplay {
	d := &statusDisplay{dev: ssd1306.NewI2C(bus)}
	d.dev.Configure(ssd1306.Config{Width: 128, Height: 64, Address: 0x3C, VccState: ssd1306.SWITCHCAPVCC})
	d.dev.ClearDisplay()
	return d
}

func (d *statusDisplay) draw(m *core.ClockManager, gen *loadGenerator) {
	task := "IDLE"
	if gen.burstActive() {
		task = "RUN"
	}

	d.dev.ClearBuffer()
	tinyfont.WriteLine(&d.dev, &proggy.TinySZ8pt7b, 0, 12, "CPU  "+strconv.Itoa(int(m.GetCPULoad()))+"%", white)
	tinyfont.WriteLine(&d.dev, &proggy.TinySZ8pt7b, 0, 26, "LVL  "+strconv.Itoa(int(m.GetCurrentLevel()))+"  "+strconv.Itoa(int(m.GetCurrentFrequency()/1000000))+"MHz", white)
	tinyfont.WriteLine(&d.dev, &proggy.TinySZ8pt7b, 0, 40, "MODE "+m.GetCurrentMode().String(), white)
	tinyfont.WriteLine(&d.dev, &proggy.TinySZ8pt7b, 0, 54, "TASK "+task, white)
	d.dev.Display()
}
