package models

type SegmentData struct {
	Off        uint64
	Addr, Size uint64
	Prot       int
	Desc       string
	DataFunc   func() ([]byte, error)
}

func (s *SegmentData) Data() ([]byte, error) {
	return s.DataFunc()
}

func (s *SegmentData) ContainsPhys(addr uint64) bool {
	return s.Off <= addr && addr < s.Off+s.Size
}

func (s *SegmentData) ContainsVirt(addr uint64) bool {
	return s.Addr <= addr && addr < s.Addr+s.Size
}

type Segment struct {
	Start, End uint64
}

func (s *Segment) Overlaps(o *Segment) bool {
	return (s.Start >= o.Start && s.Start < o.End) || (o.Start >= s.Start && o.Start < s.End)
}

// Adjacent is true when o starts where s ends or overlaps it.
func (s *Segment) Adjacent(o *Segment) bool {
	return s.Overlaps(o) || s.End == o.Start || o.End == s.Start
}

func (s *Segment) Merge(o *Segment) {
	if s.Start > o.Start {
		s.Start = o.Start
	}
	if s.End < o.End {
		s.End = o.End
	}
}

func (s *Segment) Size() uint64 {
	return s.End - s.Start
}
