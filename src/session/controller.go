package session

import (
	"time"

	"relic-keeper/src/input"
	"relic-keeper/src/logutil"
)

// Controller turns verdicts into key sequences. It owns pacing and the
// pending batch-sell bookkeeping; the loop owns everything else.
type Controller struct {
	driver input.Driver

	InteractKey string
	FavoriteKey string
	SellMenuKey string
	AdvanceKey  string

	KeyDelay   time.Duration
	MoveSettle time.Duration

	// pendingSell counts relics marked for sale but not yet confirmed
	// through the sell menu.
	pendingSell int
}

func NewController(driver input.Driver) *Controller {
	return &Controller{
		driver:      driver,
		InteractKey: "f",
		FavoriteKey: "2",
		SellMenuKey: "3",
		AdvanceKey:  "right",
		KeyDelay:    50 * time.Millisecond,
		MoveSettle:  180 * time.Millisecond,
	}
}

// MarkSell presses the sell-mark key for the current relic. The mark
// is provisional until ConfirmBatch runs.
func (c *Controller) MarkSell() error {
	if err := c.driver.Press(c.InteractKey, c.KeyDelay, c.MoveSettle); err != nil {
		return err
	}
	c.pendingSell++
	return nil
}

// ToggleFavorite presses the favorite key for the current relic.
func (c *Controller) ToggleFavorite() error {
	return c.driver.Press(c.FavoriteKey, c.KeyDelay, c.MoveSettle)
}

// Advance moves the cursor to the next relic and waits for the UI to
// settle.
func (c *Controller) Advance() error {
	return c.driver.Press(c.AdvanceKey, c.KeyDelay, c.MoveSettle)
}

// ConfirmBatch opens the sell menu and confirms every pending mark.
// Returns the number of relics sold.
func (c *Controller) ConfirmBatch() (int, error) {
	if c.pendingSell == 0 {
		return 0, nil
	}
	if err := c.driver.Press(c.SellMenuKey, c.KeyDelay, 800*time.Millisecond); err != nil {
		return 0, err
	}
	if err := c.driver.Press(c.InteractKey, c.KeyDelay, c.MoveSettle); err != nil {
		return 0, err
	}
	sold := c.pendingSell
	c.pendingSell = 0
	logutil.Successf("batch sell confirmed: %d relics", sold)
	return sold, nil
}

// PendingSell reports how many marks await confirmation.
func (c *Controller) PendingSell() int { return c.pendingSell }

// UnmarkSell rolls the pending counter back after a failed mark probe.
func (c *Controller) UnmarkSell() {
	if c.pendingSell > 0 {
		c.pendingSell--
	}
}
