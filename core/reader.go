package brc

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var chunkReadByteSize int = os.Getpagesize()

// FileReader gives positional, read-only access to the input file. Every
// method but Open, Read and Close is safe for concurrent use once the
// file is open: workers share one reader and never a file position.
type FileReader interface {
	Open(filename string) error
	Close() error
	IsOpen() bool
	GetFilename() string
	GetSize() int64
	// ReadChunk reads into buffer from offset, like io.ReaderAt.
	ReadChunk(buffer []byte, offset int64) (int64, error)
	// Read loads the whole file in memory, GetChunk works afterwards.
	Read() (int64, error)
	// Loaded reports whether GetChunk can serve every range.
	Loaded() bool
	GetChunk(offset, size int64) ([]byte, int64)
}

// NewFileReader returns an unopened reader of the given type.
func NewFileReader(readerType BrcReaderType) (FileReader, error) {
	switch readerType {
	case BrcReaderDisk, "":
		return NewFileDiskReader(), nil
	case BrcReaderMmap:
		return NewFileMmapReader(), nil
	}
	return nil, optionsError("unknown reader %q", readerType)
}

type _FileCommonReader struct {
	filename string
	size     int64
	data     []byte
}

func (fileReader *_FileCommonReader) GetSize() int64 {
	return fileReader.size
}

func (fileReader *_FileCommonReader) GetFilename() string {
	return fileReader.filename
}

func (fileReader *_FileCommonReader) GetChunk(offset, size int64) ([]byte, int64) {
	if offset < 0 || offset >= int64(len(fileReader.data)) || size <= 0 {
		return nil, 0
	}
	sizeToRead := min(offset+size, int64(len(fileReader.data)))
	return fileReader.data[offset:sizeToRead], sizeToRead - offset
}

// openSized opens filename read-only and returns its size.
func openSized(filename string) (*os.File, int64, error) {
	if len(filename) == 0 {
		return nil, 0, &IoError{Op: "open", Offset: -1, Err: errors.New("empty filename")}
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, &IoError{Op: "open", Path: filename, Offset: -1, Err: err}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, &IoError{Op: "stat", Path: filename, Offset: -1, Err: err}
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, 0, &IoError{Op: "open", Path: filename, Offset: -1, Err: errors.New("not a regular file")}
	}
	return file, info.Size(), nil
}

// FileDiskReader reads with pread(2), so concurrent ReadChunk calls do not
// contend on a file position.
type FileDiskReader struct {
	_FileCommonReader
	file *os.File
	fd   int
}

func NewFileDiskReader() FileReader {
	return &FileDiskReader{}
}

func (fileReader *FileDiskReader) Open(filename string) error {
	if fileReader.file != nil {
		return &IoError{Op: "open", Path: filename, Offset: -1, Err: errors.New("file already open")}
	}
	file, size, err := openSized(filename)
	if err != nil {
		return err
	}
	fileReader.filename = filename
	fileReader.file = file
	fileReader.fd = int(file.Fd())
	fileReader.size = size
	return nil
}

func (fileReader *FileDiskReader) IsOpen() bool {
	return fileReader.file != nil
}

func (fileReader *FileDiskReader) Loaded() bool {
	return fileReader.data != nil
}

func (fileReader *FileDiskReader) ReadChunk(buffer []byte, offset int64) (int64, error) {
	if offset >= fileReader.size || len(buffer) == 0 {
		return 0, nil
	}
	if fileReader.file == nil {
		return 0, &IoError{Op: "read", Path: fileReader.filename, Offset: offset, Err: os.ErrClosed}
	}
	for {
		n, err := unix.Pread(fileReader.fd, buffer, offset)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, &IoError{Op: "read", Path: fileReader.filename, Offset: offset, Err: err}
		}
		return int64(n), nil
	}
}

func (fileReader *FileDiskReader) Read() (int64, error) {
	if !fileReader.IsOpen() {
		return 0, &IoError{Op: "read", Path: fileReader.filename, Offset: -1, Err: os.ErrClosed}
	}
	if fileReader.data != nil {
		return fileReader.size, nil
	}
	data := make([]byte, fileReader.size)
	total := int64(0)
	for total < fileReader.size {
		n, err := fileReader.ReadChunk(
			data[total:min(total+int64(chunkReadByteSize*64), fileReader.size)], total)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, &IoError{Op: "read", Path: fileReader.filename, Offset: total, Err: io.ErrUnexpectedEOF}
		}
		total += n
	}
	fileReader.data = data
	return total, nil
}

func (fileReader *FileDiskReader) Close() error {
	if fileReader.file == nil {
		return &IoError{Op: "close", Path: fileReader.filename, Offset: -1, Err: os.ErrClosed}
	}
	err := fileReader.file.Close()
	fileReader.file = nil
	fileReader.fd = -1
	fileReader.size = 0
	fileReader.data = nil
	return err
}

// FileMmapReader maps the whole file read-only. Every range is served
// from the mapping, without copy.
type FileMmapReader struct {
	_FileCommonReader
	open bool
}

func NewFileMmapReader() FileReader {
	return &FileMmapReader{}
}

func (fileReader *FileMmapReader) Open(filename string) error {
	if fileReader.open {
		return &IoError{Op: "open", Path: filename, Offset: -1, Err: errors.New("file already open")}
	}
	file, size, err := openSized(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	fileReader.filename = filename
	fileReader.size = size
	fileReader.open = true
	if size == 0 { // mmap refuses empty mappings
		fileReader.data = []byte{}
		return nil
	}
	mmapFile, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		fileReader.open = false
		return &IoError{Op: "mmap", Path: filename, Offset: -1, Err: err}
	}
	// advisory only
	_ = unix.Madvise(mmapFile, unix.MADV_SEQUENTIAL)
	fileReader.data = mmapFile
	return nil
}

func (fileReader *FileMmapReader) IsOpen() bool {
	return fileReader.open
}

func (fileReader *FileMmapReader) Loaded() bool {
	return fileReader.open
}

func (fileReader *FileMmapReader) ReadChunk(buffer []byte, offset int64) (int64, error) {
	if offset >= fileReader.size || len(buffer) == 0 {
		return 0, nil
	}
	if !fileReader.open {
		return 0, &IoError{Op: "read", Path: fileReader.filename, Offset: offset, Err: os.ErrClosed}
	}
	return int64(copy(buffer, fileReader.data[offset:])), nil
}

// Read faults every page in, the mapping is already complete.
func (fileReader *FileMmapReader) Read() (int64, error) {
	if !fileReader.IsOpen() {
		return 0, &IoError{Op: "read", Path: fileReader.filename, Offset: -1, Err: os.ErrClosed}
	}
	var sink byte
	for i := 0; i < len(fileReader.data); i += chunkReadByteSize {
		sink ^= fileReader.data[i]
	}
	_ = sink
	return fileReader.size, nil
}

func (fileReader *FileMmapReader) Close() error {
	if !fileReader.open {
		return &IoError{Op: "close", Path: fileReader.filename, Offset: -1, Err: os.ErrClosed}
	}
	var err error
	if len(fileReader.data) > 0 {
		err = unix.Munmap(fileReader.data)
	}
	fileReader.open = false
	fileReader.size = 0
	fileReader.data = nil
	return err
}
