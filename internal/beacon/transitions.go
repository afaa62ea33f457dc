package beacon

import "context"

type transitionAction func(ctx context.Context)

type transition struct {
	next   State
	action transitionAction
}

// release holds the press classification consumed on button release.
type release struct {
	short bool
	long  bool
}

func (c *Controller) handleKey(ctx context.Context, ev KeyEvent) {
	var rel release
	if !ev.Pressed {
		rel = c.consumePress()
	}

	tr := c.getTransition(ev, rel)
	if tr.action != nil {
		tr.action(ctx)
	}
	if tr.next != c.state {
		c.log.Info("state transition", "from", c.state.String(), "to", tr.next.String())
		c.state = tr.next
	}
	c.persistMode(ctx)
}

// consumePress stops both press timers, then takes and clears their flags.
func (c *Controller) consumePress() release {
	c.timers.StopPress()
	return release{
		short: c.shortExpired.Swap(false),
		long:  c.longExpired.Swap(false),
	}
}

func (c *Controller) getTransition(ev KeyEvent, rel release) transition {
	noAction := transition{next: c.state}
	trWithAction := func(state State, action transitionAction) transition {
		return transition{next: state, action: action}
	}

	if c.cfg.Variant == VariantKeyring {
		if ev.Pressed {
			return trWithAction(StateAdvNormal, c.startAlarm)
		}
		return noAction
	}

	switch c.state {
	case StateWarehouse, StateAdvKeepalive:
		if ev.Pressed {
			return trWithAction(StateAdvNormal, c.startAlarm)
		}

	case StateAdvNormal:
		if ev.Pressed {
			return trWithAction(StateAdvNormal, func(context.Context) {
				c.timers.StartPress()
			})
		}
		switch {
		case rel.long:
			return trWithAction(StateWarehouse, c.enterWarehouse)
		case rel.short:
			return trWithAction(StateAdvKeepalive, c.enterKeepalive)
		default:
			return trWithAction(StateAdvNormal, c.startAlarm)
		}
	}

	return noAction
}

func (c *Controller) startAlarm(context.Context) {
	c.arm(c.cfg.AlarmInterval)
	c.alarmCounter = c.cfg.AlarmTicks
	c.pulse(c.cfg.ShortPulse)
}

func (c *Controller) enterKeepalive(context.Context) {
	c.arm(c.cfg.KeepaliveInterval)
	c.alarmCounter = 0
	c.pulse(c.cfg.MediumPulse)
}

func (c *Controller) enterWarehouse(context.Context) {
	c.radioCall("disable advertising", c.radio.SetAdvertisingEnabled(false))
	c.alarmCounter = 0
	c.timers.StopPress()
	c.pulse(c.cfg.LongPulse)
}
