package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cakeshop-cart/internal/domain"
	"cakeshop-cart/internal/kvstore"
	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

type cartFeature struct {
	kv      *kvstore.Memory
	taxRate decimal.Decimal
	store   *Store
	lastErr error
}

func (f *cartFeature) reset() {
	if f.store != nil {
		_ = f.store.Close()
	}
	f.kv = kvstore.NewMemory()
	f.store = nil
	f.lastErr = nil
}

func (f *cartFeature) open() error {
	if f.store != nil {
		_ = f.store.Close()
	}
	s, err := Open(context.Background(), f.kv, Options{Key: "cart:feature", TaxRate: f.taxRate})
	if err != nil {
		return err
	}
	f.store = s
	return nil
}

func (f *cartFeature) anEmptyCartWithTaxRate(rate string) error {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return err
	}
	f.taxRate = r
	return f.open()
}

func (f *cartFeature) theSavedCartPayload(payload string) error {
	return f.kv.Set(context.Background(), "cart:feature", []byte(payload))
}

func (f *cartFeature) theCartIsReopened() error {
	return f.open()
}

func (f *cartFeature) iAdd(qty int, productID, price string) error {
	return f.addWithOptions(qty, productID, price, nil)
}

func (f *cartFeature) iAddWithSize(qty int, productID, price, size string) error {
	return f.addWithOptions(qty, productID, price, map[string]string{"size": size})
}

func (f *cartFeature) addWithOptions(qty int, productID, price string, opts map[string]string) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	_, f.lastErr = f.store.AddItem(context.Background(), AddItemInput{
		ProductID:       productID,
		UnitPrice:       p,
		Quantity:        qty,
		SelectedOptions: opts,
	})
	return nil
}

func (f *cartFeature) lineID(n int) (string, error) {
	items := f.store.State().Items
	if n < 1 || n > len(items) {
		return "", fmt.Errorf("cart has %d lines, no line %d", len(items), n)
	}
	return items[n-1].LineID, nil
}

func (f *cartFeature) iSetTheQuantityOfLineTo(n, qty int) error {
	id, err := f.lineID(n)
	if err != nil {
		return err
	}
	_, f.lastErr = f.store.UpdateQuantity(context.Background(), id, qty)
	return nil
}

func (f *cartFeature) iRemoveLine(n int) error {
	id, err := f.lineID(n)
	if err != nil {
		return err
	}
	_, f.lastErr = f.store.RemoveItem(context.Background(), id)
	return nil
}

func (f *cartFeature) iRemoveLineByID(id string) error {
	_, f.lastErr = f.store.RemoveItem(context.Background(), id)
	return nil
}

func (f *cartFeature) iApplyADiscountOf(amount string) error {
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	_, f.lastErr = f.store.ApplyDiscount(context.Background(), a)
	return nil
}

func (f *cartFeature) theCartHasLines(n int) error {
	if got := len(f.store.State().Items); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (f *cartFeature) lineHasQuantity(n, qty int) error {
	items := f.store.State().Items
	if n < 1 || n > len(items) {
		return fmt.Errorf("no line %d", n)
	}
	if got := items[n-1].Quantity; got != qty {
		return fmt.Errorf("expected quantity %d on line %d, got %d", qty, n, got)
	}
	return nil
}

func (f *cartFeature) totalIs(name string, pick func(domain.Totals) decimal.Decimal) func(string) error {
	return func(want string) error {
		w, err := decimal.NewFromString(want)
		if err != nil {
			return err
		}
		if got := pick(f.store.State().Totals); !got.Equal(w) {
			return fmt.Errorf("expected %s %s, got %s", name, want, got)
		}
		return nil
	}
}

func (f *cartFeature) theItemCountIs(n int) error {
	if got := f.store.State().Totals.ItemCount; got != n {
		return fmt.Errorf("expected item count %d, got %d", n, got)
	}
	return nil
}

func (f *cartFeature) theLastCommandFailedWith(kind string) error {
	var want error
	switch kind {
	case "not found":
		want = domain.ErrNotFound
	case "invalid input":
		want = domain.ErrInvalidInput
	default:
		return fmt.Errorf("unknown failure kind %q", kind)
	}
	if !errors.Is(f.lastErr, want) {
		return fmt.Errorf("expected %s error, got %v", kind, f.lastErr)
	}
	return nil
}

func (f *cartFeature) theCartWasRestoredAs(want string) error {
	if got := f.store.Restored().String(); got != want {
		return fmt.Errorf("expected restore result %q, got %q", want, got)
	}
	return nil
}

func initializeCartScenario(ctx *godog.ScenarioContext) {
	f := &cartFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		f.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if f.store != nil {
			_ = f.store.Close()
			f.store = nil
		}
		return ctx, nil
	})

	ctx.Step(`^an empty cart with tax rate "([^"]*)"$`, f.anEmptyCartWithTaxRate)
	ctx.Step(`^the saved cart payload "([^"]*)"$`, f.theSavedCartPayload)
	ctx.Step(`^the cart is reopened$`, f.theCartIsReopened)

	ctx.Step(`^I add (-?\d+) of "([^"]*)" at "([^"]*)"$`, f.iAdd)
	ctx.Step(`^I add (-?\d+) of "([^"]*)" at "([^"]*)" with size "([^"]*)"$`, f.iAddWithSize)
	ctx.Step(`^I set the quantity of line (\d+) to (-?\d+)$`, f.iSetTheQuantityOfLineTo)
	ctx.Step(`^I remove line (\d+)$`, f.iRemoveLine)
	ctx.Step(`^I remove line "([^"]*)"$`, f.iRemoveLineByID)
	ctx.Step(`^I apply a discount of "([^"]*)"$`, f.iApplyADiscountOf)

	ctx.Step(`^the cart has (\d+) lines?$`, f.theCartHasLines)
	ctx.Step(`^line (\d+) has quantity (\d+)$`, f.lineHasQuantity)
	ctx.Step(`^the subtotal is "([^"]*)"$`, f.totalIs("subtotal", func(t domain.Totals) decimal.Decimal { return t.Subtotal }))
	ctx.Step(`^the tax is "([^"]*)"$`, f.totalIs("tax", func(t domain.Totals) decimal.Decimal { return t.Tax }))
	ctx.Step(`^the grand total is "([^"]*)"$`, f.totalIs("grand total", func(t domain.Totals) decimal.Decimal { return t.GrandTotal }))
	ctx.Step(`^the item count is (\d+)$`, f.theItemCountIs)
	ctx.Step(`^the last command failed with "([^"]*)"$`, f.theLastCommandFailedWith)
	ctx.Step(`^the cart was restored as "([^"]*)"$`, f.theCartWasRestoredAs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
