// Package imageproc 上传图片的统一加工：裁剪到目标尺寸并编码为 JPEG
package imageproc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// 目标尺寸
const (
	tourWidth   = 2000
	tourHeight  = 1333
	avatarSize  = 500
	jpegQuality = 90
)

// TourImage 行程图片：3:2 裁剪到 2000x1333
func TourImage(r io.Reader) ([]byte, error) {
	return process(r, tourWidth, tourHeight)
}

// UserPhoto 用户头像：居中裁剪到 500x500
func UserPhoto(r io.Reader) ([]byte, error) {
	return process(r, avatarSize, avatarSize)
}

func process(r io.Reader, width, height int) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
