package model

import (
	"math"
	"math/cmplx"
)

// Line shape primitives. All area-normalized shapes take amplitude as
// the peak area, not the peak height.

var (
	s2    = math.Sqrt(2)
	s2pi  = math.Sqrt(2 * math.Pi)
	ln2   = math.Ln2
	s2ln2 = math.Sqrt(2 * math.Ln2)
)

// tiny guards widths against degenerating to zero during a fit.
const tiny = 1e-5

// Gaussian evaluates a standard gaussian with amplitude = area.
func Gaussian(x, amplitude, center, fwhm float64) float64 {
	sigma := math.Max(tiny, fwhm/(2*s2ln2))
	arg := center - x
	return amplitude / (s2pi * sigma) * math.Exp(-arg*arg/(2*sigma*sigma))
}

// Lorentzian evaluates a standard lorentzian with amplitude = area.
func Lorentzian(x, amplitude, center, fwhm float64) float64 {
	gamma := math.Max(tiny, fwhm/2)
	arg := center - x
	return amplitude / (gamma * math.Pi) * gamma * gamma / (arg*arg + gamma*gamma)
}

// Voigt evaluates a Voigt profile from the gaussian fwhm and the
// lorentzian fwhmL, using the Faddeeva function.
func Voigt(x, amplitude, center, fwhm, fwhmL float64) float64 {
	sigma := math.Max(tiny, fwhm/(2*s2ln2))
	gamma := math.Max(tiny, fwhmL/2)
	arg := center - x
	z := complex(arg, gamma) / complex(sigma*s2, 0)
	return amplitude * real(faddeeva(z)) / (sigma * s2pi)
}

// VoigtDefinedFWHM evaluates a Voigt profile from its total fwhm and
// the gaussian contribution fwhmG; the lorentzian width is inferred.
// Pass fwhmG <= 0 to use the default ratio fwhm/1.6376.
func VoigtDefinedFWHM(x, amplitude, center, fwhm, fwhmG float64) float64 {
	if fwhmG <= 0 {
		fwhmG = fwhm / 1.6376
	}
	sigma := math.Max(tiny, fwhmG/(2*s2ln2))
	fwhmL := 7.72575*fwhm - math.Sqrt(45.23566*fwhm*fwhm+14.4514*fwhmG*fwhmG)
	gamma := math.Max(tiny, fwhmL/2)
	arg := center - x
	z := complex(arg, gamma) / complex(sigma*s2, 0)
	return amplitude * real(faddeeva(z)) / (sigma * s2pi)
}

// GLSum evaluates the pseudo-Voigt sum of a gaussian and a lorentzian
// sharing area, center and fwhm, mixed by fraction (0 = pure
// gaussian, 1 = pure lorentzian).
func GLSum(x, amplitude, center, fwhm, fraction float64) float64 {
	g := Gaussian(x, amplitude, center, fwhm)
	l := Lorentzian(x, amplitude, center, fwhm)
	return (1-fraction)*g + fraction*l
}

// pureDS evaluates the raw Doniach-Sunjic line shape. Its maximum sits
// off-center; use CenteredDS for a shape whose maximum is at center.
func pureDS(x, amplitude, center, fwhm, asym float64) float64 {
	sigma := math.Max(fwhm/2, tiny)
	arg := center - x
	am1 := 1 - asym
	return amplitude / math.Pi * math.Gamma(am1) /
		math.Pow(arg*arg+sigma*sigma, am1/2) *
		math.Cos(math.Pi*asym/2+am1*math.Atan(arg/sigma))
}

// CenteredDS evaluates a Doniach-Sunjic line shape shifted so its
// maximum lies at center.
func CenteredDS(x, amplitude, center, fwhm, asym float64) float64 {
	emax := fwhm / (2 * math.Tan(math.Pi/(2-asym)))
	return pureDS(x, amplitude, center+emax, fwhm, asym)
}

// TailedDS evaluates a centered Doniach-Sunjic damped by an
// exponential tail on the asymmetric side.
func TailedDS(x, amplitude, center, fwhm, asym, tail float64) float64 {
	emax := fwhm / (2 * math.Tan(math.Pi/(2-asym)))
	center += emax
	ds := pureDS(x, amplitude, center, fwhm, asym)
	return ds * asymmTail(x, center, fwhm, tail)
}

// asymmTail dampens asymmetric lines below x = center.
func asymmTail(x, center, fwhm, tail float64) float64 {
	arg := (center - x) / fwhm
	return math.Exp(-math.Max(arg, 0) * tail)
}

// faddeeva computes the scaled complex error function
// w(z) = exp(-z^2) erfc(-iz) for Im(z) >= 0, using Humlicek's
// four-region rational approximation (JQSRT 27, 437 (1982)).
// Relative accuracy is about 1e-4, sufficient for profile evaluation.
func faddeeva(z complex128) complex128 {
	x := real(z)
	y := imag(z)
	t := complex(y, -x)
	s := math.Abs(x) + y

	switch {
	case s >= 15:
		// Region I
		return t * 0.5641896 / (0.5 + t*t)
	case s >= 5.5:
		// Region II
		u := t * t
		return t * (1.410474 + u*0.5641896) / (0.75 + u*(3.0+u))
	case y >= 0.195*math.Abs(x)-0.176:
		// Region III
		num := 16.4955 + t*(20.20933+t*(11.96482+t*(3.778987+t*0.5642236)))
		den := 16.4955 + t*(38.82363+t*(39.27121+t*(21.69274+t*(6.699398+t))))
		return num / den
	default:
		// Region IV
		u := t * t
		num := t * (36183.31 - u*(3321.9905-u*(1540.787-u*(219.0313-u*(35.76683-u*(1.320522-u*0.56419))))))
		den := 32066.6 - u*(24322.84-u*(9022.228-u*(2186.181-u*(364.2191-u*(61.57037-u*(1.841439-u))))))
		return cmplx.Exp(u) - num/den
	}
}
