package led

// Tick advances the controller by one poll period. Turning test mode on
// captures the LED states and starts the chase; every following tick moves
// the chase one LED further. Turning it off restores the captured states.
func (c *Controller) Tick(testMode bool) {
	switch {
	case testMode && c.phase == PhaseInactive:
		c.enter()
	case !testMode && c.phase == PhaseActive:
		c.exit()
	}

	if c.phase == PhaseActive {
		c.step()
	}
}

// Shutdown restores the LEDs if the chase is still running.
func (c *Controller) Shutdown() {
	if c.phase == PhaseActive {
		c.exit()
	}
}

func (c *Controller) enter() {
	c.log.Info("LEDs entering test mode")
	for _, l := range c.leds {
		if _, ok := c.known[l.Name]; ok {
			continue
		}
		active, err := c.io.ReadLine(l)
		if err != nil {
			c.log.WithField("led", l.Name).WithError(err).Error("failed to save LED state")
			continue
		}
		c.known[l.Name] = fromActive(active)
	}
	c.log.Info("LEDs previous state has been saved")

	c.phase = PhaseActive
	c.cursor = 0
	c.chase = StateOff
	c.notify()
}

func (c *Controller) step() {
	l := c.leds[c.cursor]
	if err := c.io.WriteLine(l, c.chase.active()); err != nil {
		c.log.WithField("led", l.Name).WithError(err).Error("chase write failed")
	}

	c.cursor++
	if c.cursor == len(c.leds) {
		c.cursor = 0
		c.chase = c.chase.flip()
	}
}

func (c *Controller) exit() {
	c.log.Info("LEDs exiting test mode")
	for _, l := range c.leds {
		s, ok := c.known[l.Name]
		if !ok {
			c.log.WithField("led", l.Name).Warn("no saved state, leaving as is")
			continue
		}
		if err := c.io.WriteLine(l, s.active()); err != nil {
			c.log.WithField("led", l.Name).WithError(err).Error("failed to restore LED state")
		}
	}
	c.log.Info("LEDs have been restored to previous state")

	c.phase = PhaseInactive
	c.cursor = -1
	c.chase = StateOff
	c.notify()
}

func (c *Controller) notify() {
	if c.onPhase != nil {
		c.onPhase(c.phase)
	}
}
