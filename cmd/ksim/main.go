// Command ksim is the host-side simulator: it builds the kernel's
// in-process environment (physical memory, PMM, process table,
// scheduler, in-memory VFS), loads an init ELF image, and drives the
// trap core from three concurrently running goroutines (a simulated
// hart tick loop, a virtual block device, and a virtual console)
// coordinated with golang.org/x/sync/errgroup so the first failure
// stops the whole machine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"riscvkernel/kconfig"
	"riscvkernel/kconsole"
	"riscvkernel/kdefs"
	"riscvkernel/kfs"
	"riscvkernel/klog"
	"riscvkernel/kmem"
	"riscvkernel/kproc"
	"riscvkernel/kriscv"
	"riscvkernel/ksched"
	"riscvkernel/ksyscall"
	"riscvkernel/ktrap"
)

func main() {
	initPath := flag.String("init", "", "host path to the init ELF binary")
	tickHz := flag.Int("tick-hz", kconfig.TicksPerSecond, "simulated timer frequency")
	vtCount := flag.Int("vts", 4, "number of virtual consoles")
	profileOut := flag.String("profile-out", "", "write a tick-duration pprof profile to this path on exit")
	raw := flag.Bool("raw-term", false, "put stdin into raw mode for the virtual console")
	split := flag.Bool("split", false, "render every VT side by side instead of streaming the active VT")
	flag.Parse()

	if *initPath == "" {
		fmt.Fprintln(os.Stderr, "ksim: -init is required")
		os.Exit(2)
	}

	_, sched, core, err := boot(*initPath)
	if err != 0 {
		klog.Panic("boot failed: %v", err)
	}

	console := kconsole.NewMultiplex(*vtCount)
	tp := newTickProfiler()
	if *profileOut != "" {
		defer func() {
			if werr := tp.WriteTo(*profileOut); werr != nil {
				fmt.Fprintf(os.Stderr, "ksim: writing profile: %v\n", werr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *raw {
		if term, terr := makeRaw(int(os.Stdin.Fd())); terr != nil {
			fmt.Fprintf(os.Stderr, "ksim: raw terminal unavailable: %v\n", terr)
		} else {
			defer term.Restore()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hartLoop(gctx, core, sched, tp, *tickHz) })
	g.Go(func() error { return blockdevLoop(gctx, kfs.NewMemBlockDevice(1024)) })
	g.Go(func() error { return consoleLoop(gctx, console, *split) })

	klog.Boot("ksim running, %d VTs", *vtCount)
	if werr := g.Wait(); werr != nil && werr != context.Canceled {
		fmt.Fprintf(os.Stderr, "ksim: %v\n", werr)
		os.Exit(1)
	}
}

// boot constructs the in-process kernel environment and loads the init
// process, returning the trap core ready to drive.
func boot(initHostPath string) (*ksyscall.Env, *ksched.Scheduler_t, *ktrap.Core_t, kdefs.Err_t) {
	mem := newHostRAM(kconfig.PhysPages * kconfig.PageSize)
	pmm := kmem.NewPMM(0, kconfig.PhysPages)
	kernelRoot, ok := pmm.AllocFrame()
	if !ok {
		return nil, nil, nil, kdefs.ENOMEM
	}

	table := kproc.NewTable()
	queue := ksched.NewReadyQueue(kconfig.ReadyQueueCap)
	sched := ksched.NewScheduler(queue, nil, nil)
	fsRoot := kfs.NewMemFS()

	data, rerr := os.ReadFile(initHostPath)
	if rerr != nil {
		return nil, nil, nil, kdefs.ENOENT
	}
	initNode, cerr := fsRoot.Create("init")
	if cerr != 0 {
		return nil, nil, nil, cerr
	}
	if _, werr := initNode.Write(data, 0); werr != 0 {
		return nil, nil, nil, werr
	}

	p, perr := kproc.CreateFromELF(table, mem, pmm, kernelRoot, fsRoot, "/init")
	if perr != 0 {
		return nil, nil, nil, perr
	}
	sched.Enqueue(p)

	env := &ksyscall.Env{
		Table:      table,
		Sched:      sched,
		Mem:        mem,
		PMM:        pmm,
		KernelRoot: kernelRoot,
		FSRoot:     fsRoot,
	}
	var sumOn bool
	core := ktrap.New(env, sched, nil, ktrap.Hooks{
		ClearSUM:       func() { sumOn = false },
		SaveScratch:    func(uint64) {},
		RestoreScratch: func() uint64 { return 0 },
	}, func(v bool) { sumOn = v })
	_ = sumOn
	return env, sched, core, 0
}

// hartLoop delivers a timer interrupt to the trap core at tickHz,
// standing in for the real platform timer's periodic trap.
func hartLoop(ctx context.Context, core *ktrap.Core_t, sched *ksched.Scheduler_t, tp *tickProfiler, tickHz int) error {
	if tickHz <= 0 {
		tickHz = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			core.Trap(kriscv.IntSupervisorTimer|kriscv.CauseInterruptBit, 0, 0)
			tp.Record(time.Since(start))
		}
	}
}

// blockdevLoop stands in for the virtual block device's servicing
// goroutine. The in-memory VFS never issues real block I/O in this
// build, so the loop only exists to exercise the errgroup coordination
// pattern and give a real block device somewhere to be serviced once
// one is wired up.
func blockdevLoop(ctx context.Context, dev *kfs.MemBlockDevice) error {
	<-ctx.Done()
	return ctx.Err()
}

// consoleLoop pumps bytes between the host terminal and the console:
// stdin bytes are injected as keystrokes into the active VT, and
// buffered output is drained to stdout. In split mode every VT is
// drained each tick and the tail line of each is rendered side by side
// as one status row; otherwise the active VT's output streams through
// unmodified.
func consoleLoop(ctx context.Context, console *kconsole.Multiplex, split bool) error {
	in := make(chan byte, 256)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				in <- buf[0]
			}
			if err != nil {
				close(in)
				return
			}
		}
	}()
	tails := make([]string, console.Count())
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			console.Active().Inject(b)
		case <-ticker.C:
			if !split {
				if out := console.Active().Drain(4096); len(out) > 0 {
					os.Stdout.Write(out)
				}
				continue
			}
			changed := false
			for i := 0; i < console.Count(); i++ {
				out := console.VT(i).Drain(4096)
				if len(out) == 0 {
					continue
				}
				changed = true
				tails[i] = lastLine(tails[i] + string(out))
			}
			if changed {
				os.Stdout.WriteString("\r" + renderPanes(tails))
			}
		}
	}
}
