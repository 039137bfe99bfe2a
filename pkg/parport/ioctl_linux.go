//go:build linux

package parport

// ppdev ioctl requests from <linux/ppdev.h>.
//
//	PPRDATA   = _IOR('p', 0x85, unsigned char)
//	PPWDATA   = _IOW('p', 0x86, unsigned char)
//	PPCLAIM   = _IO('p', 0x8b)
//	PPRELEASE = _IO('p', 0x8c)
const (
	ioctlPPRDATA   uint = iocRead<<iocDirShift | 1<<iocSizeShift | 'p'<<iocTypeShift | 0x85
	ioctlPPWDATA   uint = iocWrite<<iocDirShift | 1<<iocSizeShift | 'p'<<iocTypeShift | 0x86
	ioctlPPCLAIM   uint = 'p'<<iocTypeShift | 0x8b
	ioctlPPRELEASE uint = 'p'<<iocTypeShift | 0x8c
)
