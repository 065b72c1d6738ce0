package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/stomplog/stomplog/pkg/audio"
)

// DefaultFFTSize is the transform length used when none is configured.
const DefaultFFTSize = 2048

// minDominantHz excludes DC and sub-audible rumble bins from the
// dominant-frequency pick.
const minDominantHz = 20.0

// Spectrum holds the frequency-domain measures of one candidate buffer.
// All energies are non-negative; frequencies are in Hz and bounded by the
// buffer's Nyquist frequency.
type Spectrum struct {
	// Band energies: sqrt(mean(amplitude²)) over the bins of each band.
	ImpactEnergy  float64 // 20–100 Hz, the footstep thump band
	LowMidEnergy  float64 // 100–300 Hz
	MidEnergy     float64 // 300–1000 Hz
	HighMidEnergy float64 // 1000–3000 Hz
	HighEnergy    float64 // 3000–8000 Hz

	// DominantHz is the frequency of the strongest bin at or above 20 Hz.
	DominantHz float64

	// CentroidHz is the amplitude-weighted mean frequency of the half
	// spectrum; 0 when the buffer is silent.
	CentroidHz float64
}

// TotalEnergy returns the sum of the five band energies.
func (s Spectrum) TotalEnergy() float64 {
	return s.ImpactEnergy + s.LowMidEnergy + s.MidEnergy + s.HighMidEnergy + s.HighEnergy
}

// ImpactRatio returns the impact band's share of the total energy, or 0
// when the spectrum is empty.
func (s Spectrum) ImpactRatio() float64 {
	total := s.TotalEnergy()
	if total <= 0 {
		return 0
	}
	return s.ImpactEnergy / total
}

// SpectrumAnalyzer computes windowed real-FFT spectra of audio buffers.
// Not safe for concurrent use; the orchestrator's single classify worker
// owns one instance per session.
type SpectrumAnalyzer struct {
	fftSize int
	fft     *fourier.FFT
	hann    []float64
	scratch []float64
}

// NewSpectrumAnalyzer returns an analyzer with the default 2048-point
// transform.
func NewSpectrumAnalyzer() *SpectrumAnalyzer {
	return NewSpectrumAnalyzerSize(DefaultFFTSize)
}

// NewSpectrumAnalyzerSize returns an analyzer with transform length n.
// Non-positive n falls back to the default.
func NewSpectrumAnalyzerSize(n int) *SpectrumAnalyzer {
	if n <= 0 {
		n = DefaultFFTSize
	}
	hann := make([]float64, n)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return &SpectrumAnalyzer{
		fftSize: n,
		fft:     fourier.NewFFT(n),
		hann:    hann,
		scratch: make([]float64, n),
	}
}

// analysisBands are the fixed band edges in Hz, low to high.
var analysisBands = [5][2]float64{
	{20, 100},    // impact
	{100, 300},   // low-mid
	{300, 1000},  // mid
	{1000, 3000}, // high-mid
	{3000, 8000}, // high
}

// Analyze computes the spectrum of buf's first min(frames, fftSize)
// samples, zero-padded to the transform length. Returns false for a buffer
// with zero frames or no sample rate.
func (a *SpectrumAnalyzer) Analyze(buf audio.Buffer) (Spectrum, bool) {
	if buf.Empty() || buf.SampleRate <= 0 {
		return Spectrum{}, false
	}

	n := min(buf.FrameCount(), a.fftSize)
	for i := 0; i < n; i++ {
		a.scratch[i] = float64(buf.Samples[i]) * a.hann[i]
	}
	for i := n; i < a.fftSize; i++ {
		a.scratch[i] = 0
	}

	coeffs := a.fft.Coefficients(nil, a.scratch)

	// Amplitude spectrum with 2/N normalization.
	amps := make([]float64, len(coeffs))
	norm := 2.0 / float64(a.fftSize)
	for i, c := range coeffs {
		amps[i] = cmplx.Abs(c) * norm
	}

	binHz := buf.SampleRate / float64(a.fftSize)

	var sp Spectrum
	sp.ImpactEnergy = bandEnergy(amps, binHz, analysisBands[0])
	sp.LowMidEnergy = bandEnergy(amps, binHz, analysisBands[1])
	sp.MidEnergy = bandEnergy(amps, binHz, analysisBands[2])
	sp.HighMidEnergy = bandEnergy(amps, binHz, analysisBands[3])
	sp.HighEnergy = bandEnergy(amps, binHz, analysisBands[4])

	// Dominant frequency: strongest bin at or above 20 Hz.
	startBin := int(math.Ceil(minDominantHz / binHz))
	if startBin < len(amps) {
		maxBin := startBin
		for i := startBin + 1; i < len(amps); i++ {
			if amps[i] > amps[maxBin] {
				maxBin = i
			}
		}
		sp.DominantHz = float64(maxBin) * binHz
	}

	// Spectral centroid over the whole half spectrum.
	var weighted, total float64
	for i, amp := range amps {
		weighted += float64(i) * binHz * amp
		total += amp
	}
	if total > 0 {
		sp.CentroidHz = weighted / total
	}

	return sp, true
}

// bandEnergy returns sqrt(mean(amp²)) over the bins whose center frequency
// falls inside band. Bands that map to no bins (band above Nyquist) yield 0.
func bandEnergy(amps []float64, binHz float64, band [2]float64) float64 {
	lo := int(math.Ceil(band[0] / binHz))
	hi := int(math.Floor(band[1] / binHz))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(amps) {
		hi = len(amps) - 1
	}
	if hi < lo {
		return 0
	}
	var sum float64
	for i := lo; i <= hi; i++ {
		sum += amps[i] * amps[i]
	}
	return math.Sqrt(sum / float64(hi-lo+1))
}
