package server

// pixelGIF is a 1x1 transparent GIF89a.
var pixelGIF = []byte("GIF89a" +
	"\x01\x00\x01\x00\x80\x00\x00" +
	"\x00\x00\x00\xff\xff\xff" +
	"!\xf9\x04\x01\x00\x00\x00\x00" +
	",\x00\x00\x00\x00\x01\x00\x01\x00\x00" +
	"\x02\x02D\x01\x00;")
