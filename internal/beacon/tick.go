package beacon

// handleTick runs the alarm countdown and refreshes the payload once per
// advertising event.
func (c *Controller) handleTick() {
	alarm := false
	if c.alarmCounter > 0 {
		c.alarmCounter--
		alarm = true
		c.pulse(c.cfg.Timers.AlarmBlink)

		if c.alarmCounter == 0 {
			c.arm(c.cfg.DefaultInterval)
			alarm = false
			c.timers.AlarmBlink.Stop()
			c.ledOff()
			c.log.Info("alarm finished")
		}
	}

	c.payload.Update(alarm, c.battery.Level())
	c.ticks++
	c.radioCall("set payload", c.radio.SetAdvertisementPayload(c.payload.Bytes()))
}
