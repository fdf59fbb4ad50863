// deckprobe is a diagnostics tool: it enumerates the controller on both
// the HID and raw-USB stacks, and can wake the panel and dump raw input
// reports to verify the event path end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seagrayinc/soomfon-deck/internal/hid"
	"github.com/seagrayinc/soomfon-deck/internal/protocol"
	"github.com/seagrayinc/soomfon-deck/internal/rawusb"
	"github.com/seagrayinc/soomfon-deck/internal/transport"
)

func main() {
	all := flag.Bool("all", false, "list every HID/USB device, not just the controller")
	wake := flag.Bool("wake", false, "open the controller and wake the display")
	listen := flag.Bool("listen", false, "open the controller and dump raw input reports until interrupted")
	flag.Parse()

	if err := run(*all, *wake, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "deckprobe: %v\n", err)
		os.Exit(1)
	}
}

func run(all, wake, listen bool) error {
	var vid, pid uint16 = protocol.VendorID, protocol.ProductID
	if all {
		vid, pid = 0, 0
	}

	hw, err := hid.NewManager()
	if err != nil {
		return err
	}
	infos, err := hw.List()
	if err != nil {
		return err
	}
	fmt.Println("HID interfaces:")
	n := 0
	for _, i := range infos {
		if !all && (i.VendorID != vid || i.ProductID != pid) {
			continue
		}
		n++
		fmt.Printf("  %04x:%04x usage page %04x  %q %q  %s\n",
			i.VendorID, i.ProductID, i.UsagePage, i.Manufacturer, i.Product, i.Path)
	}
	if n == 0 {
		fmt.Println("  (none)")
	}

	fmt.Println("raw USB view:")
	raws, err := rawusb.Enumerate(vid, pid)
	if err != nil {
		fmt.Printf("  enumerate failed: %v\n", err)
	} else if len(raws) == 0 {
		fmt.Println("  (none)")
	} else {
		for _, r := range raws {
			fmt.Printf("  %04x:%04x usage %04x/%04x  %q %q  %s\n",
				r.VendorID, r.ProductID, r.UsagePage, r.Usage, r.Manufacturer, r.Product, r.Path)
		}
	}

	if !wake && !listen {
		return nil
	}

	tm := transport.NewManager(hw, transport.Options{
		VendorID:  protocol.VendorID,
		ProductID: protocol.ProductID,
		UsagePage: protocol.VendorUsagePage,
		FrameSize: protocol.ReportSize,
	})
	if err := tm.Connect(); err != nil {
		return err
	}
	defer tm.Close()
	codec := protocol.NewCodec(tm)

	if wake {
		if err := codec.Initialize(); err != nil {
			return err
		}
		fmt.Println("display woken")
	}

	if !listen {
		return nil
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	tm.OnData(func(data []byte) {
		if ev, ok := protocol.ParseEvent(data); ok {
			fmt.Printf("%s event id=0x%02x state=0x%02x\n",
				time.Now().Format(time.TimeOnly), ev.ID, ev.State)
			return
		}
		fmt.Printf("%s raw % x\n", time.Now().Format(time.TimeOnly), data)
	})

	fmt.Println("listening for input reports, ^C to stop")
	return tm.Run(ctx)
}
