//go:build linux && (mips || mipsle || mips64 || mips64le || ppc64 || ppc64le || sparc64)

package parport

// mips, powerpc and sparc: 3 direction bits above a 13-bit size, and
// write is 4 rather than 1.
const (
	iocRead  = 2
	iocWrite = 4

	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 29
)
