// Package monitor samples host resource utilization alongside a run:
// CPU, memory, NUMA topology, and per-device block-layer counters.
// It never participates in the worker's steady-state loop; it exists
// so cmd/ringbench monitor has something to print.
package monitor

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CPUSample reports per-core and overall utilization as a fraction of
// the interval between two consecutive Sample calls. The first
// Sample after NewSampler has no prior reading to diff against and
// reports zero utilization.
type CPUSample struct {
	PerCore []float64
	Average float64
}

// MemorySample reports host memory in bytes, read from /proc/meminfo.
type MemorySample struct {
	TotalBytes     uint64
	FreeBytes      uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UtilizationPct float64
}

// NUMANode describes one NUMA node's CPU membership.
type NUMANode struct {
	ID   int
	CPUs []int
}

// NUMASample reports NUMA topology. Hosts with no NUMA sysfs entries
// report a single synthetic node covering every CPU.
type NUMASample struct {
	Nodes []NUMANode
}

// BlockStats mirrors the 11 whitespace-separated fields of
// /sys/block/<dev>/stat, in kernel order.
type BlockStats struct {
	ReadIOs       uint64
	ReadMerges    uint64
	ReadSectors   uint64
	ReadTicksMs   uint64
	WriteIOs      uint64
	WriteMerges   uint64
	WriteSectors  uint64
	WriteTicksMs  uint64
	InFlight      uint64
	IOTicksMs     uint64
	TimeInQueueMs uint64
}

// Sample is one point-in-time reading across every monitored
// subsystem.
type Sample struct {
	CPU    CPUSample
	Memory MemorySample
	NUMA   NUMASample
	Block  *BlockStats // nil when Sampler has no device configured
}

// cpuTimes holds one CPU line's jiffie counters from /proc/stat, in
// the kernel's fixed field order (user, nice, system, idle, iowait,
// irq, softirq, steal).
type cpuTimes [8]uint64

func (c cpuTimes) total() uint64 {
	var sum uint64
	for _, v := range c {
		sum += v
	}
	return sum
}

func (c cpuTimes) idle() uint64 {
	return c[3] + c[4]
}

// Sampler reads host and device statistics on demand. It is not safe
// for concurrent use: serialize calls to Sample from one goroutine.
type Sampler struct {
	deviceName string
	prevCPU    map[string]cpuTimes
}

// NewSampler builds a Sampler. devicePath names the block device
// whose /sys/block/<dev>/stat is reported by Sample; pass "" to omit
// block-layer stats entirely.
func NewSampler(devicePath string) *Sampler {
	name := devicePath
	if idx := strings.LastIndexByte(devicePath, '/'); idx >= 0 {
		name = devicePath[idx+1:]
	}
	return &Sampler{deviceName: name}
}

// Sample reads every configured subsystem once.
func (s *Sampler) Sample() (Sample, error) {
	cpu, err := s.sampleCPU()
	if err != nil {
		return Sample{}, fmt.Errorf("monitor: cpu: %w", err)
	}

	mem, err := sampleMemory()
	if err != nil {
		return Sample{}, fmt.Errorf("monitor: memory: %w", err)
	}

	numa, err := sampleNUMA()
	if err != nil {
		return Sample{}, fmt.Errorf("monitor: numa: %w", err)
	}

	var block *BlockStats
	if s.deviceName != "" {
		b, err := sampleBlockStats(s.deviceName)
		if err != nil {
			return Sample{}, fmt.Errorf("monitor: block stats for %s: %w", s.deviceName, err)
		}
		block = b
	}

	return Sample{CPU: cpu, Memory: mem, NUMA: numa, Block: block}, nil
}

// sampleCPU reads /proc/stat and diffs it against the previous
// reading to produce a utilization fraction per core. The kernel's
// counters are cumulative since boot, so a single reading carries no
// rate information on its own.
func (s *Sampler) sampleCPU() (CPUSample, error) {
	cur, order, err := readProcStat()
	if err != nil {
		return CPUSample{}, err
	}

	if s.prevCPU == nil {
		s.prevCPU = cur
		return CPUSample{PerCore: make([]float64, len(order)-boolToInt(hasTotal(order)))}, nil
	}

	var perCore []float64
	var sum float64
	var n int
	for _, name := range order {
		if name == "cpu" {
			continue // aggregate line, not a per-core entry
		}
		prev, ok := s.prevCPU[name]
		if !ok {
			continue
		}
		util := utilizationFraction(prev, cur[name])
		perCore = append(perCore, util)
		sum += util
		n++
	}

	s.prevCPU = cur

	avg := 0.0
	if n > 0 {
		avg = sum / float64(n)
	}
	return CPUSample{PerCore: perCore, Average: avg}, nil
}

func utilizationFraction(prev, cur cpuTimes) float64 {
	totalDelta := cur.total() - prev.total()
	if totalDelta == 0 {
		return 0
	}
	idleDelta := cur.idle() - prev.idle()
	return 1 - float64(idleDelta)/float64(totalDelta)
}

func hasTotal(order []string) bool {
	for _, name := range order {
		if name == "cpu" {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// readProcStat parses every "cpu"/"cpuN" line of /proc/stat, returning
// the parsed counters keyed by field name and the order they appeared
// in (so callers can report per-core results in a stable order).
func readProcStat() (map[string]cpuTimes, []string, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	result := make(map[string]cpuTimes)
	var order []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "cpu") {
			continue
		}
		var times cpuTimes
		for i := 0; i < len(times) && i+1 < len(fields); i++ {
			v, err := strconv.ParseUint(fields[i+1], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parse /proc/stat field %d: %w", i+1, err)
			}
			times[i] = v
		}
		result[fields[0]] = times
		order = append(order, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return result, order, nil
}

// sampleMemory parses /proc/meminfo's MemTotal/MemFree/MemAvailable
// lines, which are always present and reported in kB.
func sampleMemory() (MemorySample, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return MemorySample{}, err
	}
	defer f.Close()

	values := make(map[string]uint64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		values[key] = v * 1024 // kB -> bytes
	}
	if err := scanner.Err(); err != nil {
		return MemorySample{}, err
	}

	total := values["MemTotal"]
	free := values["MemFree"]
	available := values["MemAvailable"]
	used := total - available

	pct := 0.0
	if total > 0 {
		pct = float64(used) / float64(total) * 100
	}

	return MemorySample{
		TotalBytes:     total,
		FreeBytes:      free,
		AvailableBytes: available,
		UsedBytes:      used,
		UtilizationPct: pct,
	}, nil
}

// sampleNUMA enumerates /sys/devices/system/node/nodeN/cpulist.
// Hosts with no NUMA sysfs tree (single-node systems, some
// containers) report one synthetic node covering every online CPU.
func sampleNUMA() (NUMASample, error) {
	const nodeRoot = "/sys/devices/system/node"
	entries, err := os.ReadDir(nodeRoot)
	if os.IsNotExist(err) {
		return NUMASample{Nodes: []NUMANode{{ID: 0, CPUs: onlineCPUs()}}}, nil
	}
	if err != nil {
		return NUMASample{}, err
	}

	var nodes []NUMANode
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(name, "node"))
		if err != nil {
			continue
		}
		cpus, err := readCPUList(nodeRoot + "/" + name + "/cpulist")
		if err != nil {
			return NUMASample{}, err
		}
		nodes = append(nodes, NUMANode{ID: id, CPUs: cpus})
	}

	if len(nodes) == 0 {
		return NUMASample{Nodes: []NUMANode{{ID: 0, CPUs: onlineCPUs()}}}, nil
	}
	return NUMASample{Nodes: nodes}, nil
}

// readCPUList parses a kernel cpulist file's range-list syntax
// ("0-3,8,10-11") into individual CPU indices.
func readCPUList(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}

	var cpus []int
	for _, part := range strings.Split(text, ",") {
		if start, end, ok := strings.Cut(part, "-"); ok {
			lo, err := strconv.Atoi(start)
			if err != nil {
				return nil, err
			}
			hi, err := strconv.Atoi(end)
			if err != nil {
				return nil, err
			}
			for i := lo; i <= hi; i++ {
				cpus = append(cpus, i)
			}
		} else {
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, err
			}
			cpus = append(cpus, v)
		}
	}
	return cpus, nil
}

func onlineCPUs() []int {
	cpus, err := readCPUList("/sys/devices/system/cpu/online")
	if err != nil || len(cpus) == 0 {
		return nil
	}
	return cpus
}

// sampleBlockStats reads /sys/block/<dev>/stat's 11 whitespace
// separated fields, in the kernel's fixed order.
func sampleBlockStats(deviceName string) (*BlockStats, error) {
	path := fmt.Sprintf("/sys/block/%s/stat", deviceName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 11 {
		return nil, fmt.Errorf("unexpected field count in %s: got %d, want >= 11", path, len(fields))
	}

	vals := make([]uint64, 11)
	for i := range vals {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s field %d: %w", path, i, err)
		}
		vals[i] = v
	}

	b := BlockStats{
		ReadIOs:       vals[0],
		ReadMerges:    vals[1],
		ReadSectors:   vals[2],
		ReadTicksMs:   vals[3],
		WriteIOs:      vals[4],
		WriteMerges:   vals[5],
		WriteSectors:  vals[6],
		WriteTicksMs:  vals[7],
		InFlight:      vals[8],
		IOTicksMs:     vals[9],
		TimeInQueueMs: vals[10],
	}
	return &b, nil
}
